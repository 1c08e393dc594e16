package gcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/yungbote/marketing-image-engine/internal/platform/logger"
)

func TestObjectStoreEmulatorSaveRemove(t *testing.T) {
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("MI_RUN_GCS_EMULATOR_INTEGRATION")), "true") {
		t.Skip("set MI_RUN_GCS_EMULATOR_INTEGRATION=true to run emulator integration tests")
	}
	emulatorHost := strings.TrimSpace(os.Getenv("STORAGE_EMULATOR_HOST"))
	if emulatorHost == "" {
		emulatorHost = "http://127.0.0.1:4443"
	}
	emulatorHost = strings.TrimRight(emulatorHost, "/")
	if !isEmulatorReachable(t, emulatorHost) {
		t.Skipf("storage emulator not reachable at %s", emulatorHost)
	}

	bucket := fmt.Sprintf("mi-it-%d", time.Now().UnixNano())
	createBucketIfMissing(t, emulatorHost, bucket)

	store, err := NewObjectStore(context.Background(), logger.Nop(), ObjectStoreConfig{
		Storage:  ObjectStorageConfig{Mode: ObjectStorageModeGCSEmulator, EmulatorHost: emulatorHost},
		Project:  "local-dev",
		Location: "local",
		Bucket:   bucket,
	})
	if err != nil {
		t.Fatalf("NewObjectStore: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	data := []byte("png-bytes")
	url, checksum, err := store.Save(ctx, data, "req-1.png", "image/png")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if checksum != ContentMD5(data) {
		t.Fatalf("checksum: want=%s got=%s", ContentMD5(data), checksum)
	}
	key, err := store.KeyFromURL(url)
	if err != nil || key != "req-1.png" {
		t.Fatalf("KeyFromURL(%s): key=%q err=%v", url, key, err)
	}

	removed, err := store.Remove(ctx, key)
	if err != nil || !removed {
		t.Fatalf("Remove: removed=%v err=%v", removed, err)
	}
	removed, err = store.Remove(ctx, key)
	if err != nil || removed {
		t.Fatalf("Remove missing: want false,nil got=%v,%v", removed, err)
	}
}

func isEmulatorReachable(t *testing.T, emulatorHost string) bool {
	t.Helper()
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(emulatorHost + "/storage/v1/b?project=local-dev")
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 500
}

func createBucketIfMissing(t *testing.T, emulatorHost string, bucket string) {
	t.Helper()
	payload, err := json.Marshal(map[string]string{"name": bucket})
	if err != nil {
		t.Fatalf("json.Marshal(bucket): %v", err)
	}
	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequest(http.MethodPost, emulatorHost+"/storage/v1/b?project=local-dev", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("http.NewRequest(create bucket): %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("create bucket %q: %v", bucket, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated || resp.StatusCode == http.StatusConflict {
		return
	}
	b, _ := io.ReadAll(resp.Body)
	t.Fatalf("create bucket %q failed: status=%d body=%s", bucket, resp.StatusCode, strings.TrimSpace(string(b)))
}
