package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"

	"github.com/joho/godotenv"

	"github.com/onnwee/forcemap/internal/config"
	"github.com/onnwee/forcemap/internal/db"
	"github.com/onnwee/forcemap/internal/server"
)

// Seeds the database with a generated or imported graph so the layout
// engine has something to chew on without a producer attached.
func main() {
	name := flag.String("name", "", "graph name (required)")
	kind := flag.String("kind", "ring", "generator: ring, grid, scalefree")
	nodes := flag.Int("nodes", 100, "number of nodes to generate")
	dimensions := flag.Int("dimensions", 2, "layout dimensions (2 or 3)")
	seed := flag.Int64("seed", 1, "RNG seed for the scalefree generator")
	file := flag.String("file", "", "import nodes/links from a JSON file instead of generating")
	flag.Parse()

	if *name == "" {
		log.Fatal("-name is required")
	}

	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found (falling back to system env)")
	}
	cfg := config.Load()

	conn, err := server.InitDB(os.Getenv("DATABASE_URL"))
	if err != nil {
		log.Fatalf("DB init failed: %v", err)
	}
	defer conn.Close()
	queries := db.New(conn)

	var nodeRows []db.NodeUpsert
	var linkRows []db.LinkInsert
	if *file != "" {
		nodeRows, linkRows, err = loadFile(*file)
		if err != nil {
			log.Fatalf("Failed to load %s: %v", *file, err)
		}
	} else {
		switch *kind {
		case "ring":
			nodeRows, linkRows = genRing(*nodes)
		case "grid":
			nodeRows, linkRows = genGrid(*nodes)
		case "scalefree":
			nodeRows, linkRows = genScaleFree(*nodes, *seed)
		default:
			log.Fatalf("Unknown generator %q (want ring, grid or scalefree)", *kind)
		}
	}

	ctx := context.Background()
	g, err := queries.CreateGraph(ctx, db.CreateGraphParams{
		Name:        *name,
		Description: sql.NullString{String: fmt.Sprintf("seeded %s graph", *kind), Valid: *file == ""},
		Dimensions:  int32(*dimensions),
	})
	if err != nil {
		log.Fatalf("Failed to create graph: %v", err)
	}

	if err := queries.BatchUpsertGraphNodes(ctx, g.ID, nodeRows, cfg.LayoutBatchSize); err != nil {
		log.Fatalf("Failed to insert nodes: %v", err)
	}
	if err := queries.BatchInsertGraphLinks(ctx, g.ID, linkRows, cfg.LayoutBatchSize); err != nil {
		log.Fatalf("Failed to insert links: %v", err)
	}

	log.Printf("Seeded graph %s (%q) with %d nodes and %d links", g.ID, g.Name, len(nodeRows), len(linkRows))
	log.Printf("Trigger a layout with: curl -X POST http://localhost:8000/graphs/%s/layout", g.ID)
}

type filePayload struct {
	Nodes []struct {
		ID    string  `json:"id"`
		Label string  `json:"label"`
		Size  float64 `json:"size"`
	} `json:"nodes"`
	Links []struct {
		Source string  `json:"source"`
		Target string  `json:"target"`
		Weight float64 `json:"weight"`
	} `json:"links"`
}

func loadFile(path string) ([]db.NodeUpsert, []db.LinkInsert, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	var payload filePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, nil, err
	}

	nodeRows := make([]db.NodeUpsert, 0, len(payload.Nodes))
	for _, n := range payload.Nodes {
		size := n.Size
		if size <= 0 {
			size = 1
		}
		nodeRows = append(nodeRows, db.NodeUpsert{
			ID:    n.ID,
			Label: sql.NullString{String: n.Label, Valid: n.Label != ""},
			Size:  size,
		})
	}
	linkRows := make([]db.LinkInsert, 0, len(payload.Links))
	for _, l := range payload.Links {
		weight := l.Weight
		if weight <= 0 {
			weight = 1
		}
		linkRows = append(linkRows, db.LinkInsert{Source: l.Source, Target: l.Target, Weight: weight})
	}
	return nodeRows, linkRows, nil
}

// genRing produces a single cycle. Useful for eyeballing layouts since the
// converged shape is obvious.
func genRing(n int) ([]db.NodeUpsert, []db.LinkInsert) {
	nodeRows := make([]db.NodeUpsert, 0, n)
	linkRows := make([]db.LinkInsert, 0, n)
	for i := 0; i < n; i++ {
		nodeRows = append(nodeRows, db.NodeUpsert{ID: fmt.Sprintf("n%d", i), Size: 1})
		linkRows = append(linkRows, db.LinkInsert{
			Source: fmt.Sprintf("n%d", i),
			Target: fmt.Sprintf("n%d", (i+1)%n),
			Weight: 1,
		})
	}
	return nodeRows, linkRows
}

// genGrid produces a square lattice with right and down links.
func genGrid(n int) ([]db.NodeUpsert, []db.LinkInsert) {
	side := int(math.Ceil(math.Sqrt(float64(n))))
	nodeRows := make([]db.NodeUpsert, 0, n)
	var linkRows []db.LinkInsert
	for i := 0; i < n; i++ {
		nodeRows = append(nodeRows, db.NodeUpsert{ID: fmt.Sprintf("n%d", i), Size: 1})
		row, col := i/side, i%side
		if col+1 < side && i+1 < n {
			linkRows = append(linkRows, db.LinkInsert{Source: fmt.Sprintf("n%d", i), Target: fmt.Sprintf("n%d", i+1), Weight: 1})
		}
		if (row+1)*side+col < n {
			linkRows = append(linkRows, db.LinkInsert{Source: fmt.Sprintf("n%d", i), Target: fmt.Sprintf("n%d", (row+1)*side+col), Weight: 1})
		}
	}
	return nodeRows, linkRows
}

// genScaleFree grows a graph by preferential attachment: each new node
// links to two targets picked proportional to degree, which yields the
// hub-and-spoke shape typical of real networks. Node size tracks degree so
// hubs render larger.
func genScaleFree(n int, seed int64) ([]db.NodeUpsert, []db.LinkInsert) {
	rng := rand.New(rand.NewSource(seed))
	degree := make([]int, n)
	// endpoints holds one entry per link endpoint, so sampling it uniformly
	// is sampling nodes proportional to degree
	var endpoints []int
	var linkRows []db.LinkInsert

	addLink := func(a, b int) {
		linkRows = append(linkRows, db.LinkInsert{
			Source: fmt.Sprintf("n%d", a),
			Target: fmt.Sprintf("n%d", b),
			Weight: 1,
		})
		degree[a]++
		degree[b]++
		endpoints = append(endpoints, a, b)
	}

	if n > 1 {
		addLink(0, 1)
	}
	for i := 2; i < n; i++ {
		first := endpoints[rng.Intn(len(endpoints))]
		addLink(i, first)
		second := endpoints[rng.Intn(len(endpoints))]
		if second != first && second != i {
			addLink(i, second)
		}
	}

	nodeRows := make([]db.NodeUpsert, 0, n)
	for i := 0; i < n; i++ {
		size := 1 + math.Log1p(float64(degree[i]))
		nodeRows = append(nodeRows, db.NodeUpsert{ID: fmt.Sprintf("n%d", i), Size: size})
	}
	return nodeRows, linkRows
}
