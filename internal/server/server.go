package server

import (
	"context"
	"log"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/geolabel/conflator/internal/config"
	"github.com/geolabel/conflator/internal/core"
	"github.com/geolabel/conflator/internal/core/consensus"
	"github.com/geolabel/conflator/internal/core/model"
	"github.com/geolabel/conflator/internal/core/store"
	"github.com/geolabel/conflator/internal/driver"
)

type Server struct {
	Engine *core.Engine
}

func NewServer() *Server {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/config.toml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Printf("Could not load %s: %v. Using defaults", cfgPath, err)
		cfg = config.Default()
	}

	// Override config with env vars if present
	if v := os.Getenv("ANNOTATION_REDUNDANCY"); v != "" {
		cfg.Labeling.Redundancy = mustAtoi("ANNOTATION_REDUNDANCY", v)
	}
	if v := os.Getenv("CONSENSUS_MARGIN"); v != "" {
		cfg.Labeling.Margin = mustAtoi("CONSENSUS_MARGIN", v)
	}
	if v := os.Getenv("DATA_PATH"); v != "" {
		cfg.Dataset.Path = v
	}
	if v := os.Getenv("STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("MEMGRAPH_URI"); v != "" {
		cfg.Memgraph.URI = v
	}
	if v := os.Getenv("MEMGRAPH_USER"); v != "" {
		cfg.Memgraph.User = v
	}
	if v := os.Getenv("MEMGRAPH_PASSWORD"); v != "" {
		cfg.Memgraph.Password = v
	}

	ds, err := model.LoadDataset(cfg.Dataset.Path)
	if err != nil {
		log.Fatalf("Failed to load labeling dataset: %v", err)
	}
	log.Printf("Loaded %d candidate pairs in %d neighborhoods", len(ds.Pairs), len(ds.NeighborhoodIDs()))

	db, err := store.OpenBadger(cfg.Store.Path)
	if err != nil {
		log.Fatalf("Failed to open label store: %v", err)
	}

	st, err := store.Open(ds, db)
	if err != nil {
		log.Fatalf("Failed to initialize label store: %v", err)
	}

	// The Memgraph mirror is optional: without a URI the engine runs with a
	// nil driver and skips mirroring.
	var d driver.GraphDriver
	if cfg.Memgraph.URI != "" {
		mg, err := driver.NewMemgraphDriver(cfg.Memgraph.URI, cfg.Memgraph.User, cfg.Memgraph.Password)
		if err != nil {
			log.Printf("Failed to connect to Memgraph, mirroring disabled: %v", err)
		} else {
			if err := mg.BuildIndices(context.Background()); err != nil {
				log.Printf("Failed to build Memgraph indices: %v", err)
			}
			d = mg
		}
	}

	resolver := consensus.NewResolver(cfg.Labeling.Redundancy, cfg.Labeling.Margin, cfg.Labeling.MaxExtraAnnotators)

	return &Server{
		Engine: core.NewEngine(st, resolver, d),
	}
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.Default()

	r.POST("/start-session", s.StartSession)
	r.GET("/next-pair", s.NextPair)
	r.GET("/next-neighborhood", s.NextNeighborhood)
	r.GET("/pair/:id_existing/:id_new", s.ShowPair)
	r.GET("/neighborhood/:id", s.ShowNeighborhood)
	r.POST("/store-label", s.StoreLabel)
	r.POST("/store-neighborhood", s.StoreNeighborhood)
	r.GET("/scoreboard", s.Scoreboard)
	r.GET("/download-results", s.DownloadResults)
	r.GET("/download-annotations", s.DownloadAnnotations)

	return r
}

func mustAtoi(name, v string) int {
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("Invalid %s value '%s': %v", name, v, err)
	}
	return n
}
