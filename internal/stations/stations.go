// Package stations holds the static line → station name → station code table.
// A Ref is built once at startup and only read afterwards, so it is safe to
// share across concurrent queries without locking.
package stations

import (
	"fmt"
	"os"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"

	"metrotrack/internal/domain"
)

var subNameSuffix = regexp.MustCompile(`\([0-9가-힣A-Za-z]+\)$`)

// CleanName removes a trailing parenthesized annotation such as "(2호선)".
func CleanName(name string) string {
	return subNameSuffix.ReplaceAllString(name, "")
}

type Ref struct {
	byName map[string]map[string]string
	byCode map[string]map[string]string
}

// NewRef copies lines so later changes to the argument are not observed.
func NewRef(lines map[string]map[string]string) *Ref {
	r := &Ref{
		byName: make(map[string]map[string]string, len(lines)),
		byCode: make(map[string]map[string]string, len(lines)),
	}
	for line, stns := range lines {
		names := make(map[string]string, len(stns))
		codes := make(map[string]string, len(stns))
		for name, code := range stns {
			names[name] = code
			codes[code] = name
		}
		r.byName[line] = names
		r.byCode[line] = codes
	}
	return r
}

// Load reads the station map file. The file is JSON (the format the upstream
// operators publish) or the equivalent YAML.
func Load(path string) (*Ref, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.NewError(domain.KindConfiguration, "stations", fmt.Errorf("reading %s: %w", path, err))
	}

	var lines map[string]map[string]string
	if err := yaml.Unmarshal(data, &lines); err != nil {
		return nil, domain.NewError(domain.KindConfiguration, "stations", fmt.Errorf("parsing %s: %w", path, err))
	}
	if len(lines) == 0 {
		return nil, domain.Errorf(domain.KindConfiguration, "stations", "%s contains no lines", path)
	}

	return NewRef(lines), nil
}

func (r *Ref) HasLine(line string) bool {
	_, ok := r.byName[line]
	return ok
}

// Code returns the station code for name on line, or nil if it does not resolve.
func (r *Ref) Code(line, name string) *string {
	code, ok := r.byName[line][name]
	if !ok {
		return nil
	}
	return &code
}

func (r *Ref) Name(line, code string) (string, bool) {
	name, ok := r.byCode[line][code]
	return name, ok
}

// Point builds a StationPoint for name, resolving its code.
func (r *Ref) Point(line, name string) *domain.StationPoint {
	return &domain.StationPoint{Name: name, Code: r.Code(line, name)}
}

type Station struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

// Stations lists a line's stations ordered by code.
func (r *Ref) Stations(line string) []Station {
	names := r.byName[line]
	result := make([]Station, 0, len(names))
	for name, code := range names {
		result = append(result, Station{Name: name, Code: code})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Code == result[j].Code {
			return result[i].Name < result[j].Name
		}
		return result[i].Code < result[j].Code
	})
	return result
}

func (r *Ref) Lines() []string {
	lines := make([]string, 0, len(r.byName))
	for line := range r.byName {
		lines = append(lines, line)
	}
	sort.Strings(lines)
	return lines
}
