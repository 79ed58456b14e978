package strgen

import (
	"regexp"
	"sort"
	"testing"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/hatlonely/entmap/ref"
)

func TestUUIDGenerator(t *testing.T) {
	tests := []struct {
		name    string
		options *UUIDGeneratorOptions
		version uuid.Version
		pattern string
	}{
		{"nil options", nil, 4, `^[0-9a-f]{32}$`},
		{"v1", &UUIDGeneratorOptions{Version: "v1"}, 1, `^[0-9a-f]{32}$`},
		{"v4 with hyphens", &UUIDGeneratorOptions{Version: "v4", WithHyphens: true}, 4, `^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`},
		{"v6", &UUIDGeneratorOptions{Version: "v6"}, 6, `^[0-9a-f]{32}$`},
		{"v7", &UUIDGeneratorOptions{Version: "v7"}, 7, `^[0-9a-f]{32}$`},
		{"unknown version", &UUIDGeneratorOptions{Version: "v9"}, 4, `^[0-9a-f]{32}$`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewUUIDGeneratorWithOptions(tt.options).Generate()
			if !regexp.MustCompile(tt.pattern).MatchString(s) {
				t.Fatalf("格式错误: %s", s)
			}
			u, err := uuid.Parse(s)
			if err != nil {
				t.Fatal(err)
			}
			if u.Version() != tt.version {
				t.Errorf("期望版本 %d，但得到 %d", tt.version, u.Version())
			}
		})
	}
}

func TestULIDGenerator(t *testing.T) {
	gen := NewULIDGeneratorWithOptions(nil)

	ids := make([]string, 1000)
	for i := range ids {
		ids[i] = gen.Generate()
		if _, err := ulid.ParseStrict(ids[i]); err != nil {
			t.Fatalf("非法的 ULID %s: %v", ids[i], err)
		}
	}
	if !sort.StringsAreSorted(ids) {
		t.Error("ULID 应该单调递增")
	}

	lower := NewULIDGeneratorWithOptions(&ULIDGeneratorOptions{Lowercase: true}).Generate()
	if !regexp.MustCompile(`^[0-9a-z]{26}$`).MatchString(lower) {
		t.Errorf("期望小写 ULID，但得到 %s", lower)
	}
}

func TestNewStrGeneratorWithOptions(t *testing.T) {
	gen, err := NewStrGeneratorWithOptions(&ref.TypeOptions{
		Namespace: "github.com/hatlonely/entmap/uid/strgen",
		Type:      "UUIDGenerator",
		Options:   &UUIDGeneratorOptions{Version: "v7", WithHyphens: true},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(gen.Generate()) != 36 {
		t.Error("期望带中划线的 UUID")
	}

	gen, err = NewStrGeneratorWithOptions(nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := gen.(*ULIDGenerator); !ok {
		t.Errorf("默认应该是 ULIDGenerator，但得到 %T", gen)
	}
}
