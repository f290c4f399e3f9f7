package ws

import (
	"encoding/json"
	"net/http"
	"strconv"

	"harvestcraft.ai/internal/sim/terrain/chunk"
	"harvestcraft.ai/internal/sim/terrain/ore"
)

type SampleResponse struct {
	X        int      `json:"x"`
	Z        int      `json:"z"`
	Height   float64  `json:"height"`
	Moisture float64  `json:"moisture"`
	Biome    string   `json:"biome"`
	Color    string   `json:"color"`
	Tree     bool     `json:"tree"`
	Chunk    [2]int   `json:"chunk"`
	Column   []string `json:"column"`
}

// SampleHandler serves GET /v1/sample?x=&z=: the terrain at one world cell
// plus its block column from the surface down to bedrock.
func (s *Server) SampleHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		x, errX := strconv.Atoi(r.URL.Query().Get("x"))
		z, errZ := strconv.Atoi(r.URL.Query().Get("z"))
		if errX != nil || errZ != nil {
			http.Error(w, "x and z must be integers", http.StatusBadRequest)
			return
		}
		g := s.sess.Generator()
		smp := g.Sample(x, z)
		resp := SampleResponse{
			X:        x,
			Z:        z,
			Height:   smp.Height,
			Moisture: smp.Moisture,
			Biome:    string(smp.Biome),
			Color:    smp.Color,
			Tree:     smp.Tree,
		}
		k := chunk.KeyOf(x, z)
		resp.Chunk = [2]int{k.CX, k.CZ}
		layer := s.sess.Ores()
		for y := ore.SurfaceY; y >= ore.FloorY; y-- {
			resp.Column = append(resp.Column, layer.BlockAt(x, y, z))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}
