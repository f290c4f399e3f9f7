package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"harvestcraft.ai/internal/sim/terrain/biome"
	"harvestcraft.ai/internal/sim/terrain/gen"
	"harvestcraft.ai/internal/sim/tuning"
)

var biomeGlyph = map[biome.Biome]byte{
	biome.Grassland:  '.',
	biome.Desert:     ':',
	biome.Snow:       '*',
	biome.Rainforest: '%',
	biome.River:      '~',
	biome.Village:    '#',
}

// mapCmd renders a biome map offline from the tuning file.
func mapCmd(args []string) {
	fs := flag.NewFlagSet("map", flag.ExitOnError)
	tuningPath := fs.String("tuning", "", "tuning.yaml path (optional; defaults)")
	seed := fs.Int64("seed", 0, "seed override (0 keeps tuning seed)")
	x := fs.Int("x", 0, "center x")
	z := fs.Int("z", 0, "center z")
	radius := fs.Int("radius", 32, "half width in cells")
	step := fs.Int("step", 1, "cells per glyph")
	trees := fs.Bool("trees", false, "mark trees with T")
	_ = fs.Parse(args)

	t, err := tuning.Load(*tuningPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "tuning:", err)
		os.Exit(1)
	}
	if *seed != 0 {
		t.Seed = *seed
	}
	if *radius <= 0 || *step <= 0 {
		fmt.Fprintln(os.Stderr, "-radius and -step must be positive")
		os.Exit(2)
	}
	g := gen.New(t.Seed, t.GenOptions())
	renderMap(os.Stdout, g, *x, *z, *radius, *step, *trees)
}

// renderMap writes one row per z, west to east.
func renderMap(w io.Writer, g *gen.Generator, cx, cz, radius, step int, trees bool) {
	var sb strings.Builder
	for z := cz - radius; z <= cz+radius; z += step {
		sb.Reset()
		for x := cx - radius; x <= cx+radius; x += step {
			s := g.Sample(x, z)
			switch {
			case x == cx && z == cz:
				sb.WriteByte('@')
			case trees && s.Tree:
				sb.WriteByte('T')
			default:
				c, ok := biomeGlyph[s.Biome]
				if !ok {
					c = '?'
				}
				sb.WriteByte(c)
			}
		}
		fmt.Fprintln(w, sb.String())
	}
}
