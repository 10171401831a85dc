package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"voxeledit.ai/internal/logger"
	persistlog "voxeledit.ai/internal/persistence/log"
	"voxeledit.ai/internal/sim/catalogs"
	"voxeledit.ai/internal/sim/terrain/store"
	"voxeledit.ai/internal/sim/world"
)

func main() {
	var (
		configDir = flag.String("configs", "", "config directory with palette.json (default: built-in palette)")
		edge      = flag.Int("edge", 16, "chunk edge in voxels (power of two)")
		codec     = flag.String("codec", "zstd", "chunk codec: rle or zstd")
		budget    = flag.Int64("cache_budget", 8<<20, "decompressed chunk budget in bytes (0 disables compression)")
		workers   = flag.Int("workers", 0, "frame workers (0 = GOMAXPROCS)")
		spheres   = flag.Int("spheres", 16, "number of spheres to sculpt")
		radius    = flag.Float64("radius", 6, "sphere radius in voxels")
		spacing   = flag.Float64("spacing", 10, "distance between sphere centers")
		typeName  = flag.String("type", "STONE", "voxel type to sculpt with")
		picks     = flag.Int("picks", 1000, "ray casts in the pick phase")
		framesOut = flag.String("frames_out", "", "write the frame log to this directory (optional)")
		logLevel  = flag.String("log_level", "warn", "log level")
	)
	flag.Parse()

	log := logger.New(*logLevel, logger.FileConfig{}, os.Stderr)
	defer func() { _ = log.Sync() }()

	cats := catalogs.Default()
	if *configDir != "" {
		c, err := catalogs.Load(*configDir)
		if err != nil {
			fmt.Fprintln(os.Stderr, "load catalogs:", err)
			os.Exit(1)
		}
		cats = c
	}
	typ, ok := cats.Lookup(*typeName)
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown voxel type %q\n", *typeName)
		os.Exit(2)
	}

	w, err := world.New(world.WorldConfig{
		ID:        "bench",
		ChunkEdge: *edge,
		Codec:     *codec,
		Cache:     store.CacheConfig{MaxDecompressedBytes: *budget},
		Workers:   *workers,
		Palette:   cats.Palette,
	}, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "world:", err)
		os.Exit(1)
	}
	live := &countingSink{live: map[uint64]bool{}}
	w.AddSink(live)
	if *framesOut != "" {
		fl := persistlog.NewFrameLoggerWithWriter(persistlog.NewJSONLZstdWriter(*framesOut, "bench"))
		defer fl.Close()
		w.AddSink(fl)
	}

	sc := scenario{
		Spheres: *spheres,
		Radius:  float32(*radius),
		Spacing: float32(*spacing),
		Type:    typ,
		Picks:   *picks,
	}
	start := time.Now()
	rep, err := sc.run(context.Background(), w)
	if err != nil {
		log.Error("scenario failed", zap.Error(err))
		os.Exit(1)
	}
	printReport(os.Stdout, rep, *picks)
	fmt.Printf("total=%s live_meshes=%d\n", time.Since(start).Round(time.Millisecond), len(live.live))

	if err := rep.verify(); err != nil {
		fmt.Fprintln(os.Stderr, "verify:", err)
		os.Exit(1)
	}
	fmt.Println("verify: ok")
}

func printReport(out io.Writer, rep benchReport, picks int) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "phase\tframes\tavg\tmax\tupserts\tremoves\treclaimed\tchunks\tbytes\t")
	for _, p := range rep.Phases {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t\n",
			p.Name, p.Frames, p.Avg().Round(time.Microsecond), p.Max.Round(time.Microsecond),
			p.Upserted, p.Removed, p.Reclaimed, p.Chunks, p.Bytes)
	}
	_ = tw.Flush()
	fmt.Fprintf(out, "picks: %d/%d hit\n", rep.Hits, picks)
}
