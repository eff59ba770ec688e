package config

import "github.com/vusec/ramses/mapping"

var naiveMapConfig = MapConfig{
	Meta: Meta{
		Name: "naive",
		Params: []Param{
			{Type: Positional, Choices: []string{"ddr3", "ddr4"}},
		},
	},
	Build: func(args []Arg) (mapping.Mapping, error) {
		std := mapping.DDR3
		if args[0].Choice == 1 {
			std = mapping.DDR4
		}
		return mapping.NewNaive(std), nil
	},
}
