package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/vusec/ramses/addr"
	"github.com/vusec/ramses/bufmap"
	"github.com/vusec/ramses/config"
	"github.com/vusec/ramses/translate"
)

// Monitor browses a BufferMap interactively: one pane lists DRAM ranges,
// the other lists the individual entries of whichever range is selected.
type Monitor struct {
	bm *bufmap.BufferMap

	width, height int

	rangeIndex  int
	entryIndex  int
	activePane  string // "ranges" or "entries"
	gotoInput   textinput.Model
	showingGoto bool
}

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	titleStyle = lipgloss.NewStyle().
			Foreground(subtle).
			Padding(0, 1)

	rangesStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(highlight).
			Padding(1).
			Width(44)

	entriesStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(special).
			Padding(1).
			Width(44)

	selectedLineStyle = lipgloss.NewStyle().
				Background(highlight).
				Foreground(lipgloss.Color("#ffffff"))
)

func NewMonitor(bm *bufmap.BufferMap) *Monitor {
	ti := textinput.New()
	ti.Placeholder = "bank:row:col, e.g. 3:8000:0"
	ti.CharLimit = 24
	ti.Width = 26

	return &Monitor{
		bm:         bm,
		activePane: "ranges",
		gotoInput:  ti,
	}
}

func (m Monitor) Init() tea.Cmd {
	return nil
}

func (m Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		if m.showingGoto {
			switch msg.Type {
			case tea.KeyEnter:
				if a, ok := parseDRAMAddr(m.gotoInput.Value()); ok {
					if pos, ok := m.bm.Find(a); ok {
						m.rangeIndex, m.entryIndex = pos.RI, pos.EI
					}
				}
				m.showingGoto = false
				return m, nil
			case tea.KeyEsc:
				m.showingGoto = false
				return m, nil
			}
			var cmd tea.Cmd
			m.gotoInput, cmd = m.gotoInput.Update(msg)
			return m, cmd
		}

		switch msg.String() {
		case "g":
			m.showingGoto = true
			m.gotoInput.Focus()
			return m, textinput.Blink
		case "q", "ctrl+c":
			return m, tea.Quit
		case "tab":
			if m.activePane == "ranges" {
				m.activePane = "entries"
			} else {
				m.activePane = "ranges"
			}
		case "up":
			if m.activePane == "ranges" {
				if m.rangeIndex > 0 {
					m.rangeIndex--
					m.entryIndex = 0
				}
			} else if m.entryIndex > 0 {
				m.entryIndex--
			}
		case "down":
			if m.activePane == "ranges" {
				if m.rangeIndex < len(m.bm.Ranges)-1 {
					m.rangeIndex++
					m.entryIndex = 0
				}
			} else if m.entryIndex < m.bm.Ranges[m.rangeIndex].EntryCnt-1 {
				m.entryIndex++
			}
		case "r", "b":
			lvl := addr.Row
			if msg.String() == "b" {
				lvl = addr.Bank
			}
			next := m.bm.Next(bufmap.BMPos{RI: m.rangeIndex, EI: m.entryIndex}, lvl)
			if next.RI < len(m.bm.Ranges) {
				m.rangeIndex, m.entryIndex = next.RI, next.EI
			}
		case "pgup":
			m.rangeIndex -= 20
			if m.rangeIndex < 0 {
				m.rangeIndex = 0
			}
			m.entryIndex = 0
		case "pgdown":
			m.rangeIndex += 20
			if m.rangeIndex > len(m.bm.Ranges)-1 {
				m.rangeIndex = len(m.bm.Ranges) - 1
			}
			m.entryIndex = 0
		}
	}
	return m, nil
}

func parseDRAMAddr(s string) (addr.DRAMAddr, bool) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return addr.DRAMAddr{}, false
	}
	bank, err1 := strconv.ParseUint(parts[0], 16, 8)
	row, err2 := strconv.ParseUint(parts[1], 16, 16)
	col, err3 := strconv.ParseUint(parts[2], 16, 16)
	if err1 != nil || err2 != nil || err3 != nil {
		return addr.DRAMAddr{}, false
	}
	return addr.DRAMAddr{Bank: uint8(bank), Row: uint16(row), Col: uint16(col)}, true
}

func (m Monitor) formatRanges() string {
	var b strings.Builder
	lo, hi := windowAround(m.rangeIndex, len(m.bm.Ranges), 18)
	for i := lo; i < hi; i++ {
		line := fmt.Sprintf("%4d  %s  %d entries", i, m.bm.Ranges[i].Start, m.bm.Ranges[i].EntryCnt)
		if i == m.rangeIndex {
			line = selectedLineStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func (m Monitor) formatEntries() string {
	var b strings.Builder
	if m.rangeIndex >= len(m.bm.Ranges) {
		return b.String()
	}
	r := m.bm.Ranges[m.rangeIndex]
	lo, hi := windowAround(m.entryIndex, r.EntryCnt, 18)
	for ei := lo; ei < hi; ei++ {
		entry, err := m.bm.GetEntry(bufmap.BMPos{RI: m.rangeIndex, EI: ei})
		line := fmt.Sprintf("%4d  %s", ei, entry.DRAMAddr)
		if err != nil {
			line = fmt.Sprintf("%4d  <error: %v>", ei, err)
		} else {
			line = fmt.Sprintf("%s  va=0x%x", line, entry.VirtP)
		}
		if ei == m.entryIndex {
			line = selectedLineStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func windowAround(sel, n, span int) (int, int) {
	lo := sel - span/2
	if lo < 0 {
		lo = 0
	}
	hi := lo + span
	if hi > n {
		hi = n
	}
	return lo, hi
}

func (m Monitor) View() string {
	ranges := rangesStyle.Render(fmt.Sprintf(
		"Ranges (%d total, %d bytes/entry)\n\n%s",
		len(m.bm.Ranges), m.bm.EntryLen, m.formatRanges(),
	))
	entries := entriesStyle.Render(fmt.Sprintf(
		"Entries\n\n%s",
		m.formatEntries(),
	))

	help := titleStyle.Render(
		"↑↓: move • r/b: next row/bank • pgup/pgdn: page ranges • tab: switch pane • g: goto address • q: quit",
	)

	content := lipgloss.JoinHorizontal(lipgloss.Top, ranges, entries)

	if m.showingGoto {
		dialog := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(1).
			Width(34).
			Render("Go to DRAM address (bank:row:col):\n\n" + m.gotoInput.View())
		return lipgloss.JoinVertical(lipgloss.Center, content, help, dialog)
	}

	return lipgloss.JoinVertical(lipgloss.Left, content, help)
}

func main() {
	cfgStr := flag.String("c", "map:naive:ddr3", "memory system configuration string")
	sizeStr := flag.String("size", "4m", "buffer size, accepts k/m/g suffixes")
	heuristicBase := flag.String("heuristic", "", "treat the buffer as physically contiguous from this base address (hex)")
	pageShift := flag.Int("pageshift", 12, "log2 of the page size the translator assumes")
	flag.Parse()

	size, err := parseSize(*sizeStr)
	if err != nil {
		fmt.Printf("Error parsing -size: %v\n", err)
		os.Exit(1)
	}

	ms, err := config.Load(*cfgStr)
	if err != nil {
		fmt.Printf("Error parsing -c: %v\n", err)
		os.Exit(1)
	}

	buf := make([]byte, size)
	var trans translate.Translation
	if *heuristicBase != "" {
		base, err := strconv.ParseUint(strings.TrimPrefix(*heuristicBase, "0x"), 16, 64)
		if err != nil {
			fmt.Printf("Error parsing -heuristic: %v\n", err)
			os.Exit(1)
		}
		trans = translate.NewHeuristic(*pageShift, addr.PhysAddr(base))
	} else {
		pm, err := translate.OpenPagemap("self")
		if err != nil {
			fmt.Printf("Error opening pagemap (pass -heuristic to avoid this): %v\n", err)
			os.Exit(1)
		}
		defer pm.Close()
		trans = pm
	}

	bm, err := bufmap.Build(buf, trans, ms, bufmap.BuildOpts{})
	if err != nil {
		fmt.Printf("Error building buffer map: %v\n", err)
		os.Exit(1)
	}

	p := tea.NewProgram(NewMonitor(bm))
	if _, err := p.Run(); err != nil {
		fmt.Printf("Error running program: %v\n", err)
		os.Exit(1)
	}
}

func parseSize(s string) (int, error) {
	shift := 0
	switch s[len(s)-1] {
	case 'k', 'K':
		shift, s = 10, s[:len(s)-1]
	case 'm', 'M':
		shift, s = 20, s[:len(s)-1]
	case 'g', 'G':
		shift, s = 30, s[:len(s)-1]
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%q: %w", s, err)
	}
	return n << uint(shift), nil
}
