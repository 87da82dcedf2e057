// Command contextctl runs one pipeline flow against live providers and
// prints the result.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/i474232898/venue-context-aggregation/internal/app"
	"github.com/i474232898/venue-context-aggregation/internal/config"
	"github.com/i474232898/venue-context-aggregation/internal/domain"
	"github.com/i474232898/venue-context-aggregation/internal/logging"
	"github.com/i474232898/venue-context-aggregation/internal/pipeline"
)

func main() {
	mode := flag.String("mode", "recommend", "flow to run: recommend, context or suggest")
	lat := flag.Float64("lat", 0, "latitude")
	lng := flag.Float64("lng", 0, "longitude")
	query := flag.String("query", "", "venue search query")
	user := flag.String("user", "", "user id for personalization")
	token := flag.String("token", "", "calendar access token")
	raw := flag.Bool("json", false, "print the raw JSON result")
	timeout := flag.Duration("timeout", 30*time.Second, "overall timeout")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}
	logging.Init(cfg.Log)

	a := app.New(cfg, nil)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx = logging.ContextWithRequestID(ctx, uuid.NewString())

	loc := &domain.Location{Lat: *lat, Lng: *lng}

	var out any
	switch *mode {
	case "recommend":
		out, err = a.Pipeline.Recommend(ctx, pipeline.RecommendRequest{Location: loc, UserID: *user, Query: *query})
	case "context":
		out, err = a.Pipeline.Context(ctx, pipeline.ContextRequest{Location: loc, Query: *query, AccessToken: *token})
	case "suggest":
		out, err = a.Pipeline.Suggest(ctx, pipeline.SuggestRequest{Location: loc, UserID: *user, AccessToken: *token})
	default:
		fmt.Fprintf(os.Stderr, "unknown mode %q\n", *mode)
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s failed [%s]: %v\n", *mode, domain.Classify(err), err)
		os.Exit(1)
	}

	if *raw {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			fmt.Fprintln(os.Stderr, "encode:", err)
			os.Exit(1)
		}
		return
	}

	switch v := out.(type) {
	case pipeline.RecommendResponse:
		printRecommendations(os.Stdout, v.Results)
	case pipeline.Bundle:
		printBundle(os.Stdout, v)
	case pipeline.Suggestion:
		printSuggestion(os.Stdout, v)
	}
}
