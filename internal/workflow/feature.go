package workflow

import (
	"fmt"
	"regexp"
	"strings"
)

// Complexity levels scale the effort estimate of a feature.
type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// Feature is one unit of the incremental implementation plan.
type Feature struct {
	ID           string
	Title        string
	Description  string
	Files        []string
	Validation   string
	Dependencies []string
	Complexity   Complexity
}

var (
	featureRe      = regexp.MustCompile(`(?s)FEATURE\[(\d+)\]:\s*(.+?)(?:\n|$)`)
	featureSplitRe = regexp.MustCompile(`(?m)^FEATURE\[\d+\]:`)
	depRefRe       = regexp.MustCompile(`FEATURE\[\d+\]`)

	featureFieldRes = map[string]*regexp.Regexp{
		"description":  regexp.MustCompile(`(?s)Description:\s*(.+?)(?:\n[A-Z]|\n\n|$)`),
		"files":        regexp.MustCompile(`(?s)Files:\s*(.+?)(?:\n[A-Z]|\n\n|$)`),
		"validation":   regexp.MustCompile(`(?s)Validation:\s*(.+?)(?:\n[A-Z]|\n\n|$)`),
		"dependencies": regexp.MustCompile(`(?s)Dependencies:\s*(.+?)(?:\n[A-Z]|\n\n|$)`),
		"complexity":   regexp.MustCompile(`(?:Estimated\s*)?Complexity:\s*(\w+)`),
	}
)

// ParseFeatures extracts the FEATURE[n] entries from a design's
// IMPLEMENTATION PLAN section and returns them in dependency order.
// A design without a plan yields a single feature covering the whole
// design.
func ParseFeatures(design string) []Feature {
	idx := strings.Index(design, "IMPLEMENTATION PLAN")
	if idx < 0 {
		return []Feature{defaultFeature(design)}
	}
	plan := design[idx:]

	// Split the plan into per-feature chunks.
	bounds := featureSplitRe.FindAllStringIndex(plan, -1)
	if len(bounds) == 0 {
		return []Feature{defaultFeature(design)}
	}

	var features []Feature
	byID := make(map[string]int)
	for i, bound := range bounds {
		end := len(plan)
		if i+1 < len(bounds) {
			end = bounds[i+1][0]
		}
		chunk := plan[bound[0]:end]
		if planEnd := strings.Index(chunk, "IMPLEMENTATION PLAN END"); planEnd >= 0 {
			chunk = chunk[:planEnd]
		}

		head := featureRe.FindStringSubmatch(chunk)
		if head == nil {
			continue
		}
		feature := parseFeatureChunk("FEATURE["+head[1]+"]", strings.TrimSpace(head[2]), chunk)
		byID[feature.ID] = len(features)
		features = append(features, feature)
	}
	if len(features) == 0 {
		return []Feature{defaultFeature(design)}
	}
	return topoSort(features, byID)
}

func parseFeatureChunk(id, title, chunk string) Feature {
	field := func(name string) string {
		if m := featureFieldRes[name].FindStringSubmatch(chunk); m != nil {
			return strings.TrimSpace(m[1])
		}
		return ""
	}

	var files []string
	for _, f := range strings.Split(field("files"), ",") {
		if f = strings.TrimSpace(f); f != "" {
			files = append(files, f)
		}
	}

	return Feature{
		ID:           id,
		Title:        title,
		Description:  field("description"),
		Files:        files,
		Validation:   field("validation"),
		Dependencies: parseDependencies(field("dependencies")),
		Complexity:   parseComplexity(field("complexity")),
	}
}

func parseDependencies(s string) []string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "n/a", "-", "":
		return nil
	}
	return depRefRe.FindAllString(s, -1)
}

func parseComplexity(s string) Complexity {
	lower := strings.ToLower(s)
	switch {
	case strings.Contains(lower, "low"):
		return ComplexityLow
	case strings.Contains(lower, "high"):
		return ComplexityHigh
	default:
		return ComplexityMedium
	}
}

// topoSort orders features so dependencies come before dependents.
// Unknown dependencies are ignored; cycles resolve in listed order.
func topoSort(features []Feature, byID map[string]int) []Feature {
	sorted := make([]Feature, 0, len(features))
	visited := make(map[string]bool, len(features))

	var visit func(f Feature)
	visit = func(f Feature) {
		if visited[f.ID] {
			return
		}
		visited[f.ID] = true
		for _, dep := range f.Dependencies {
			if idx, ok := byID[dep]; ok {
				visit(features[idx])
			}
		}
		sorted = append(sorted, f)
	}
	for _, f := range features {
		visit(f)
	}
	return sorted
}

func defaultFeature(design string) Feature {
	desc := design
	if len(desc) > 200 {
		desc = desc[:200]
	}
	return Feature{
		ID:          "FEATURE[1]",
		Title:       "Complete implementation",
		Description: fmt.Sprintf("Implement the full design: %s", desc),
		Complexity:  ComplexityMedium,
	}
}
