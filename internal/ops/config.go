// Package ops loads and resolves the runtime configuration.
package ops

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"hedgelink/internal/match"
	"hedgelink/internal/mirror"
	"hedgelink/internal/recorder"
	"hedgelink/pkg/conn"
)

const (
	defaultGraceWindowMs = 5000
	defaultQueueCapacity = 1024
	defaultJournalDir    = "data/journal"
	defaultSnapshotPath  = "data/groups.json"
)

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	Account   string             `json:"account"`
	Reconcile ReconcileConfig    `json:"reconcile"`
	Journal   JournalConfig      `json:"journal"`
	Policy    PolicyConfig       `json:"policy"`
	Families  []FamilyConfig     `json:"families"`
	Local     LocalConfig        `json:"local"`
	Remote    RemoteConfig       `json:"remote"`
	Store     StoreConfig        `json:"store"`
	Obs       ObsConfig          `json:"obs"`
	Features  FeatureFlagsConfig `json:"features"`
}

// ReconcileConfig tunes the reconciliation loop.
type ReconcileConfig struct {
	GraceWindowMs int    `json:"graceWindowMs"`
	QueueCapacity int    `json:"queueCapacity"`
	SnapshotPath  string `json:"snapshotPath"`
}

// JournalConfig tunes the event journal.
type JournalConfig struct {
	Dir             string `json:"dir"`
	SegmentMaxBytes int64  `json:"segmentMaxBytes"`
	QueueSize       int    `json:"queueSize"`
	FlushIntervalMs int    `json:"flushIntervalMs"`
	SyncIntervalMs  int    `json:"syncIntervalMs"`
}

// PolicyConfig overrides the closure reason policy.
type PolicyConfig struct {
	NeverMirror []string `json:"neverMirror"`
}

// FamilyConfig maps a venue symbol to a local instrument root.
type FamilyConfig struct {
	Symbol string `json:"symbol"`
	Root   string `json:"root"`
}

// LocalConfig describes the primary platform connection.
type LocalConfig struct {
	URL string `json:"url"`
}

// RemoteConfig describes the hedge venue connection.
type RemoteConfig struct {
	URL string `json:"url"`
}

// ObsConfig describes observability endpoints. Empty values disable
// the corresponding feature.
type ObsConfig struct {
	MetricsAddr  string `json:"metricsAddr"`
	PyroscopeURL string `json:"pyroscopeUrl"`
}

// StoreConfig describes the optional history database.
type StoreConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"sslMode"`
}

// FeatureFlagsConfig captures optional runtime flags.
type FeatureFlagsConfig struct {
	EnableMirroring *bool `json:"enableMirroring"`
	EnableJournal   *bool `json:"enableJournal"`
}

// FeatureFlags are resolved runtime flags.
type FeatureFlags struct {
	EnableMirroring bool
	EnableJournal   bool
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Account      string
	GraceWindow  time.Duration
	QueueCap     int
	SnapshotPath string
	Journal      recorder.Config
	Policy       *mirror.TablePolicy
	Families     match.Families
	LocalURL     string
	RemoteURL    string
	StoreEnabled bool
	Store        conn.Option
	MetricsAddr  string
	PyroscopeURL string
	Features     FeatureFlags
}

// Load reads a JSON config file and resolves it.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, err
	}
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, err
	}
	return Resolve(cfg)
}

// Resolve validates a file config and fills defaults.
func Resolve(cfg FileConfig) (Loaded, error) {
	if cfg.Account == "" {
		return Loaded{}, fmt.Errorf("account is empty")
	}
	if cfg.Reconcile.GraceWindowMs < 0 {
		return Loaded{}, fmt.Errorf("reconcile.graceWindowMs must be >= 0")
	}
	if cfg.Reconcile.QueueCapacity < 0 {
		return Loaded{}, fmt.Errorf("reconcile.queueCapacity must be >= 0")
	}
	if cfg.Journal.SegmentMaxBytes < 0 {
		return Loaded{}, fmt.Errorf("journal.segmentMaxBytes must be >= 0")
	}

	graceMs := cfg.Reconcile.GraceWindowMs
	if graceMs == 0 {
		graceMs = defaultGraceWindowMs
	}
	queueCap := cfg.Reconcile.QueueCapacity
	if queueCap == 0 {
		queueCap = defaultQueueCapacity
	}
	snapshotPath := cfg.Reconcile.SnapshotPath
	if snapshotPath == "" {
		snapshotPath = defaultSnapshotPath
	}

	journalDir := cfg.Journal.Dir
	if journalDir == "" {
		journalDir = defaultJournalDir
	}
	journal := recorder.DefaultConfig(journalDir)
	if cfg.Journal.SegmentMaxBytes > 0 {
		journal.SegmentMaxBytes = cfg.Journal.SegmentMaxBytes
	}
	if cfg.Journal.QueueSize > 0 {
		journal.QueueSize = cfg.Journal.QueueSize
	}
	if cfg.Journal.FlushIntervalMs > 0 {
		journal.FlushInterval = time.Duration(cfg.Journal.FlushIntervalMs) * time.Millisecond
	}
	if cfg.Journal.SyncIntervalMs > 0 {
		journal.SyncInterval = time.Duration(cfg.Journal.SyncIntervalMs) * time.Millisecond
	}

	policy := mirror.DefaultPolicy()
	if len(cfg.Policy.NeverMirror) > 0 {
		policy = mirror.NewTablePolicy(cfg.Policy.NeverMirror)
	}

	families := match.DefaultFamilies()
	for _, f := range cfg.Families {
		if f.Symbol == "" || f.Root == "" {
			return Loaded{}, fmt.Errorf("family mapping needs symbol and root")
		}
		families[strings.ToUpper(f.Symbol)] = strings.ToUpper(f.Root)
	}

	if cfg.Store.Enabled && cfg.Store.Database == "" {
		return Loaded{}, fmt.Errorf("store.database is empty")
	}

	return Loaded{
		Account:      cfg.Account,
		GraceWindow:  time.Duration(graceMs) * time.Millisecond,
		QueueCap:     queueCap,
		SnapshotPath: snapshotPath,
		Journal:      journal,
		Policy:       policy,
		Families:     families,
		LocalURL:     cfg.Local.URL,
		RemoteURL:    cfg.Remote.URL,
		StoreEnabled: cfg.Store.Enabled,
		MetricsAddr:  cfg.Obs.MetricsAddr,
		PyroscopeURL: cfg.Obs.PyroscopeURL,
		Store: conn.Option{
			Host:     cfg.Store.Host,
			Port:     cfg.Store.Port,
			User:     cfg.Store.User,
			Password: cfg.Store.Password,
			Database: cfg.Store.Database,
			SSLMode:  cfg.Store.SSLMode,
		},
		Features: resolveFeatures(cfg.Features),
	}, nil
}

func resolveFeatures(cfg FeatureFlagsConfig) FeatureFlags {
	flags := FeatureFlags{
		EnableMirroring: true,
		EnableJournal:   true,
	}
	if cfg.EnableMirroring != nil {
		flags.EnableMirroring = *cfg.EnableMirroring
	}
	if cfg.EnableJournal != nil {
		flags.EnableJournal = *cfg.EnableJournal
	}
	return flags
}
