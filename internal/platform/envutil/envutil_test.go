package envutil

import (
	"testing"
	"time"
)

func TestGettersFallBackToDefault(t *testing.T) {
	t.Setenv("MI_TEST_VALUE", "")
	if got := String("MI_TEST_VALUE", "d"); got != "d" {
		t.Fatalf("String: want=d got=%s", got)
	}
	if got := Int("MI_TEST_VALUE", 7); got != 7 {
		t.Fatalf("Int: want=7 got=%d", got)
	}
	if got := Bool("MI_TEST_VALUE", true); !got {
		t.Fatalf("Bool: want=true got=false")
	}
	if got := Duration("MI_TEST_VALUE", time.Minute); got != time.Minute {
		t.Fatalf("Duration: want=1m got=%s", got)
	}

	t.Setenv("MI_TEST_VALUE", "garbage")
	if got := Int64("MI_TEST_VALUE", 3); got != 3 {
		t.Fatalf("Int64: want=3 got=%d", got)
	}
}

func TestGettersParse(t *testing.T) {
	t.Setenv("MI_TEST_INT", " 42 ")
	t.Setenv("MI_TEST_BOOL", "off")
	t.Setenv("MI_TEST_DUR", "1500ms")
	t.Setenv("MI_TEST_SECS", "5")
	if got := Int("MI_TEST_INT", 0); got != 42 {
		t.Fatalf("Int: want=42 got=%d", got)
	}
	if got := Bool("MI_TEST_BOOL", true); got {
		t.Fatalf("Bool: want=false got=true")
	}
	if got := Duration("MI_TEST_DUR", 0); got != 1500*time.Millisecond {
		t.Fatalf("Duration: want=1.5s got=%s", got)
	}
	if got := Duration("MI_TEST_SECS", 0); got != 5*time.Second {
		t.Fatalf("Duration seconds: want=5s got=%s", got)
	}
}

func TestFloat64(t *testing.T) {
	t.Setenv("MI_TEST_RATIO", "0.25")
	if got := Float64("MI_TEST_RATIO", 1); got != 0.25 {
		t.Fatalf("Float64: want=0.25 got=%v", got)
	}
	t.Setenv("MI_TEST_RATIO", "half")
	if got := Float64("MI_TEST_RATIO", 1); got != 1 {
		t.Fatalf("Float64 fallback: want=1 got=%v", got)
	}
}
