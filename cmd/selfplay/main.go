package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/Joker2770/rapfi"
	enc "github.com/Joker2770/rapfi/encoding/gif"
	"github.com/Joker2770/rapfi/eval"
	"github.com/Joker2770/rapfi/game"
	"github.com/Joker2770/rapfi/search"
)

var (
	boardSize  = flag.Int("size", 15, "board edge length")
	ruleName   = flag.String("rule", "freestyle", "freestyle, standard or renju")
	weightFile = flag.String("weights", "", "Mix8 weight file; random weights when empty")
	maxDepth   = flag.Float64("depth", 8, "search depth limit")
	maxNodes   = flag.Uint64("nodes", 200000, "per-move node budget, 0 for unbounded")
	seed       = flag.Int64("seed", 42, "seed for random weights")
	gifFile    = flag.String("gif", "", "write the game as an animated gif")
	dotFile    = flag.String("dot", "", "write the last search's root statistics as graphviz dot")
	timeout    = flag.Duration("timeout", 10*time.Minute, "total game time")
)

func parseRule(s string) (game.Rule, error) {
	for r := game.Freestyle; r < game.RuleNb; r++ {
		if r.String() == s {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown rule %q", s)
}

func loadWeights() (*eval.Mix8WeightTwoSide, error) {
	if *weightFile == "" {
		log.Printf("no weight file, using random weights (seed %d)", *seed)
		return eval.NewWeightTwoSide(eval.NewRandomWeight(*seed)), nil
	}
	w, err := eval.LoadWeight(*weightFile)
	if err != nil {
		return nil, err
	}
	return eval.NewWeightTwoSide(w), nil
}

func main() {
	flag.Parse()

	rule, err := parseRule(*ruleName)
	if err != nil {
		log.Fatal(err)
	}
	weights, err := loadWeights()
	if err != nil {
		log.Fatal(err)
	}

	engine, err := rapfi.New(rapfi.Config{
		Name:      fmt.Sprintf("Gomoku %dx%d (%s)", *boardSize, *boardSize, rule),
		BoardSize: *boardSize,
		Rule:      rule,
		Weights:   weights,
		Search: search.Config{
			MaxDepth: search.Depth(*maxDepth),
			MaxNodes: *maxNodes,
		},
	})
	if err != nil {
		log.Fatal(err)
	}

	var gifEnc *enc.Encoder
	var frames rapfi.FrameEncoder
	if *gifFile != "" {
		gifEnc = enc.NewGifEncoder(3000, 3000)
		frames = gifEnc
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	start := time.Now()
	moves, winner, err := engine.SelfPlay(ctx, frames)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("game over in %d moves after %v", len(moves), time.Since(start))
	switch winner {
	case game.Empty:
		log.Print("result: draw")
	default:
		log.Printf("result: %v wins", winner)
	}
	fmt.Printf("%s\n", engine.Board())

	if gifEnc != nil {
		f, err := os.Create(*gifFile)
		if err != nil {
			log.Fatal(err)
		}
		gifEnc.Writer = f
		if err := gifEnc.Flush(); err != nil {
			log.Fatal(err)
		}
		f.Close()
		log.Printf("wrote %s", *gifFile)
	}
	if *dotFile != "" {
		if err := os.WriteFile(*dotFile, []byte(engine.Searcher().ToDot(engine.Board())), 0o644); err != nil {
			log.Fatal(err)
		}
		log.Printf("wrote %s", *dotFile)
	}
}
