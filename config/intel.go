package config

import (
	"fmt"

	"github.com/vusec/ramses/addr"
	"github.com/vusec/ramses/mapping"
	"github.com/vusec/ramses/mapping/x86"
)

var intelMapConfig = MapConfig{
	Meta: Meta{
		Name: "intel",
		Params: []Param{
			{Type: Positional, Choices: []string{"sandy", "ivyhaswell"}},
			{Name: "2chan", Type: Flag},
			{Name: "2dimm", Type: Flag},
			{Name: "2rank", Type: Flag},
			{Name: "pcibase", Type: Int},
			{Name: "tom", Type: Int},
		},
	},
	Build: func(args []Arg) (mapping.Mapping, error) {
		var geom x86.Geometry
		if args[1].Flag {
			geom |= x86.DualChan
		}
		if args[2].Flag {
			geom |= x86.DualDimm
		}
		if args[3].Flag {
			geom |= x86.DualRank
		}
		opts := x86.ControllerOpts{
			PCIBase: addr.PhysAddr(args[4].Num),
			MemTop:  addr.PhysAddr(args[5].Num),
			Geom:    geom,
		}
		switch args[0].Choice {
		case 0:
			return x86.NewSandy(opts), nil
		case 1:
			return x86.NewIvyHaswell(opts), nil
		default:
			return nil, fmt.Errorf("config: unreachable intel variant %d", args[0].Choice)
		}
	},
}
