package main

import (
	"context"
	"flag"
	"log"
	"os"

	"hedgelink/internal/ledger"
	"hedgelink/internal/recorder"
	"hedgelink/internal/service"
)

func main() {
	journalDir := flag.String("journal-dir", "data/journal", "Journal directory to replay")
	filePrefix := flag.String("prefix", "", "Journal file prefix (default: journal)")
	noChecksum := flag.Bool("no-checksum", false, "Disable checksum validation")
	maxPayload := flag.Int("max-payload", 0, "Max payload size in bytes (0=default bound)")
	snapshotPath := flag.String("snapshot", "", "Snapshot to verify against (empty=skip)")
	flag.Parse()

	if err := run(*journalDir, *filePrefix, *noChecksum, *maxPayload, *snapshotPath); err != nil {
		log.Printf("replay: %v", err)
		os.Exit(1)
	}
}

func run(journalDir, filePrefix string, noChecksum bool, maxPayload int, snapshotPath string) error {
	rebuilt, err := service.Rebuild(context.Background(), recorder.PlaybackConfig{
		Dir:             journalDir,
		FilePrefix:      filePrefix,
		DisableChecksum: noChecksum,
		MaxPayloadSize:  maxPayload,
	})
	if err != nil {
		return err
	}

	if snapshotPath != "" {
		expected, err := ledger.ReadSnapshot(snapshotPath)
		if err != nil {
			return err
		}
		if err := ledger.CompareSnapshots(expected, rebuilt.Snapshot()); err != nil {
			return err
		}
		log.Printf("snapshot verified: groups=%d", len(expected.Groups))
	}

	log.Printf("replay completed: groups=%d open=%d", rebuilt.Count(), len(rebuilt.Open()))
	return nil
}
