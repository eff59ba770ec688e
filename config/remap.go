package config

import "github.com/vusec/ramses/remap"

var rankMirrorRemapConfig = RemapConfig{
	Meta: Meta{
		Name: "rankmirror",
		Params: []Param{
			{Type: Positional, Choices: []string{"ddr3", "ddr4"}},
		},
	},
	Build: func(args []Arg) (remap.Remapping, error) {
		if args[0].Choice == 1 {
			return remap.RankMirrorDDR4{}, nil
		}
		return remap.RankMirrorDDR3{}, nil
	},
}

var rasXorRemapConfig = RemapConfig{
	Meta: Meta{
		Name: "rasxor",
		Params: []Param{
			{Name: "bit", Type: Int},
			{Name: "mask", Type: Int},
		},
	},
	Build: func(args []Arg) (remap.Remapping, error) {
		return remap.NewRASXor(int(args[0].Num), uint16(args[1].Num))
	},
}
