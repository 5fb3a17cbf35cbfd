package inventory

import (
	_ "embed"
	"strings"
)

// Reference catalog used to bootstrap a device that has never synced.
// One material per line: code <TAB> name. Stock starts at zero and is
// filled in by the admin or by the first remote pull.
//
//go:embed catalog.tsv
var rawCatalog string

// ParseCatalog parses the tab-separated reference list. Lines without a
// code or name get placeholder values instead of being dropped, so a
// typo in the reference file never shrinks the catalog silently.
func ParseCatalog(raw string) []Material {
	lines := strings.Split(raw, "\n")
	out := make([]Material, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.Split(line, "\t")
		code := strings.TrimSpace(parts[0])
		name := strings.TrimSpace(strings.Join(parts[1:], "\t"))
		if code == "" {
			code = "S/C"
		}
		if name == "" {
			name = "Material sem nome"
		}
		out = append(out, Material{
			ID:    MaterialID(code),
			Code:  code,
			Name:  name,
			Stock: 0,
		})
	}
	return DedupeMaterials(out)
}

// SeedCatalog returns the embedded reference catalog.
func SeedCatalog() []Material {
	return ParseCatalog(rawCatalog)
}
