package contract

import (
	"os"
	"path/filepath"
	"testing"
)

const contractYAML = `name: receipt
fields:
  - name: merchant
    kind: string
    description: merchant name as printed
  - name: total
    kind: number
  - name: items
    kind: array
    items:
      kind: object
      fields:
        - name: label
          kind: string
        - name: price
          kind: number
`

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "receipt.yaml")
	if err := os.WriteFile(path, []byte(contractYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	ct, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if ct.Name != "receipt" || len(ct.Fields) != 3 {
		t.Errorf("parsed contract = %+v", ct)
	}
	if _, err := ct.Resolve("items.price"); err != nil {
		t.Errorf("items.price should resolve: %v", err)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	if _, err := Parse([]byte("name: broken\nfields:\n  - name: a\n    kind: float\n")); err == nil {
		t.Error("expected validation error for unknown kind")
	}
	if _, err := Parse([]byte(":::not yaml")); err == nil {
		t.Error("expected parse error")
	}
}
