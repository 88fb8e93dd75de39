package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
)

func TestAtomicWrite(t *testing.T) {
	testPath := filepath.Join(t.TempDir(), "config.json")

	data := []byte(`{"test": "data"}`)
	if err := atomicWrite(testPath, data); err != nil {
		t.Fatalf("atomicWrite failed: %v", err)
	}

	// Verify temp file was cleaned up
	if _, err := os.Stat(testPath + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file was not cleaned up")
	}

	readData, err := os.ReadFile(testPath)
	if err != nil {
		t.Fatalf("failed to read config: %v", err)
	}
	if string(readData) != string(data) {
		t.Errorf("content mismatch: got %q, want %q", string(readData), string(data))
	}
}

func TestAtomicWriteCreatesDir(t *testing.T) {
	testPath := filepath.Join(t.TempDir(), "subdir", "config.json")

	if err := atomicWrite(testPath, []byte(`{}`)); err != nil {
		t.Fatalf("atomicWrite failed: %v", err)
	}
	if _, err := os.Stat(testPath); os.IsNotExist(err) {
		t.Error("config file was not created")
	}
}

func TestBackupConfig(t *testing.T) {
	testPath := filepath.Join(t.TempDir(), "config.json")

	originalData := []byte(`{"original": true}`)
	writeFile(t, testPath, string(originalData), 0644)

	if err := backupConfig(testPath); err != nil {
		t.Fatalf("backupConfig failed: %v", err)
	}

	bakData, err := os.ReadFile(testPath + ".bak")
	if err != nil {
		t.Fatalf("failed to read backup: %v", err)
	}
	if string(bakData) != string(originalData) {
		t.Errorf("backup content mismatch: got %q, want %q", string(bakData), string(originalData))
	}
}

func TestBackupConfigFirstRun(t *testing.T) {
	testPath := filepath.Join(t.TempDir(), "config.json")

	if err := backupConfig(testPath); err != nil {
		t.Fatalf("backupConfig failed on first run: %v", err)
	}
	if _, err := os.Stat(testPath + ".bak"); !os.IsNotExist(err) {
		t.Error("backup should not exist on first run")
	}
}

func TestSaveAndLoad(t *testing.T) {
	clearEnv(t)

	for _, name := range []string{"config.json", "config.yaml"} {
		t.Run(name, func(t *testing.T) {
			testPath := filepath.Join(t.TempDir(), name)

			cfg := NewConfig()
			cfg.Collector.Endpoint = "https://search.example.com"
			cfg.Collector.Collection = "products"
			cfg.Collector.AccountID = "acme"
			cfg.Tracking.MaxInFlight = 8

			if err := Save(cfg, testPath); err != nil {
				t.Fatalf("Save failed: %v", err)
			}

			loaded, err := LoadFrom(testPath)
			if err != nil {
				t.Fatalf("LoadFrom failed: %v", err)
			}
			if !reflect.DeepEqual(loaded, cfg) {
				t.Errorf("loaded config differs:\n got %+v\nwant %+v", loaded, cfg)
			}
		})
	}
}

func TestSaveWritesYAMLForYAMLPaths(t *testing.T) {
	testPath := filepath.Join(t.TempDir(), "config.yml")

	if err := Save(NewConfig(), testPath); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	data, err := os.ReadFile(testPath)
	if err != nil {
		t.Fatal(err)
	}
	if strings.HasPrefix(strings.TrimSpace(string(data)), "{") {
		t.Errorf("expected YAML output, got %s", data)
	}
	if !strings.Contains(string(data), "backend: sqlite") {
		t.Errorf("expected YAML keys, got %s", data)
	}
}

func TestSaveCreatesBackup(t *testing.T) {
	testPath := filepath.Join(t.TempDir(), "config.json")

	cfg := NewConfig()
	cfg.Collector.Collection = "first"
	if err := Save(cfg, testPath); err != nil {
		t.Fatalf("first Save failed: %v", err)
	}

	cfg.Collector.Collection = "second"
	if err := Save(cfg, testPath); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	bakData, err := os.ReadFile(testPath + ".bak")
	if err != nil {
		t.Fatalf("failed to read backup: %v", err)
	}
	if !strings.Contains(string(bakData), `"first"`) || strings.Contains(string(bakData), `"second"`) {
		t.Error("backup should contain old config, not new config")
	}
}

func TestSaveConcurrentWrites(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping concurrent write test in short mode")
	}
	clearEnv(t)

	testPath := filepath.Join(t.TempDir(), "config.json")

	const numGoroutines = 10
	var wg sync.WaitGroup

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			cfg := NewConfig()
			cfg.Tracking.MaxInFlight = idx
			if err := Save(cfg, testPath); err != nil {
				// Racing renames may fail; corruption is what matters.
				t.Logf("concurrent save error: %v", err)
			}
		}(i)
	}

	wg.Wait()

	if _, err := LoadFrom(testPath); err != nil {
		t.Errorf("config file is corrupted after concurrent writes: %v", err)
	}
}
