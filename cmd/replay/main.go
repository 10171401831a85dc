package main

import (
	"flag"
	"fmt"
	"os"

	persistlog "voxeledit.ai/internal/persistence/log"
)

func main() {
	var (
		framesDir = flag.String("frames", "", "session frame log dir containing <prefix>-*.jsonl.zst")
		prefix    = flag.String("prefix", "frames", "frame log file prefix")
		fromFrame = flag.Uint64("from_frame", 0, "start checking at frame (inclusive, optional)")
		toFrame   = flag.Uint64("to_frame", 0, "stop at frame (inclusive, optional)")
	)
	flag.Parse()

	if *framesDir == "" {
		fmt.Fprintln(os.Stderr, "missing -frames")
		os.Exit(2)
	}
	files, err := persistlog.ListFiles(*framesDir, *prefix)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list frame logs:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no frame logs found in", *framesDir)
		os.Exit(1)
	}

	c := newChecker(*fromFrame, *toFrame)
	for _, path := range files {
		if err := persistlog.ReadFrames(path, c.check); err != nil {
			if err == errDone {
				break
			}
			fmt.Fprintln(os.Stderr, "replay:", err)
			os.Exit(1)
		}
	}
	s := c.summary()
	fmt.Printf("replay ok: frames=%d first=%d last=%d actions=%d reclaimed=%d live_meshes=%d last_digest=%s\n",
		s.Frames, s.First, s.Last, s.Actions, s.Reclaimed, s.LiveMeshes, s.LastDigest)
}
