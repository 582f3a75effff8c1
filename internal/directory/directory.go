// Package directory holds the campus company/building table used to resolve
// destinations by name.
package directory

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"gopkg.in/yaml.v3"
)

// markerDirection is the rotation of the building arrow icons on the basemap.
const markerDirection = 120

type Company struct {
	Name         string  `yaml:"name" json:"name" validate:"required"`
	Logo         string  `yaml:"logo" json:"logo"`
	Building     string  `yaml:"building" json:"building" validate:"required"`
	Longitude    float64 `yaml:"longitude" json:"longitude" validate:"gte=-180,lte=180"`
	Latitude     float64 `yaml:"latitude" json:"latitude" validate:"gte=-90,lte=90"`
	ShowTriangle bool    `yaml:"show_triangle" json:"show_triangle"`
}

func (c Company) Point() orb.Point {
	return orb.Point{c.Longitude, c.Latitude}
}

type file struct {
	Companies []Company `yaml:"companies"`
	// Buildings lists campus buildings without tenants.
	Buildings []string `yaml:"buildings"`
}

type Directory struct {
	path string

	mu        sync.RWMutex
	companies []Company
	vacant    []string
}

// Load reads and validates the directory file at path.
func Load(path string) (*Directory, error) {
	d := &Directory{path: path}
	if err := d.Reload(); err != nil {
		return nil, err
	}
	return d, nil
}

// New builds an in-memory directory, applying the same defaults as Load.
// vacant names buildings that exist on campus but house no company.
func New(companies []Company, vacant ...string) (*Directory, error) {
	if err := validateCompanies(companies); err != nil {
		return nil, err
	}
	d := &Directory{}
	d.companies = withTriangles(companies)
	d.vacant = append([]string(nil), vacant...)
	return d, nil
}

// Reload re-reads the backing file. On error the current table is kept.
func (d *Directory) Reload() error {
	data, err := os.ReadFile(d.path)
	if err != nil {
		return fmt.Errorf("reading directory file: %w", err)
	}
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parsing directory file: %w", err)
	}
	if err := validateCompanies(f.Companies); err != nil {
		return err
	}

	companies := withTriangles(f.Companies)
	d.mu.Lock()
	d.companies = companies
	d.vacant = f.Buildings
	d.mu.Unlock()
	return nil
}

func (d *Directory) All() []Company {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]Company(nil), d.companies...)
}

// Search matches q case-insensitively against company names and building numbers.
func (d *Directory) Search(q string) []Company {
	q = strings.ToLower(strings.TrimSpace(q))
	d.mu.RLock()
	defer d.mu.RUnlock()

	res := make([]Company, 0, len(d.companies))
	for _, c := range d.companies {
		if strings.Contains(strings.ToLower(c.Name), q) || strings.Contains(strings.ToLower(c.Building), q) {
			res = append(res, c)
		}
	}
	return res
}

func (d *Directory) Lookup(name string) (Company, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, c := range d.companies {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return Company{}, false
}

// LookupBuilding returns the first company housed in building.
func (d *Directory) LookupBuilding(building string) (Company, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, c := range d.companies {
		if strings.EqualFold(c.Building, building) {
			return c, true
		}
	}
	return Company{}, false
}

// HasBuilding reports whether building is on campus, tenanted or not.
func (d *Directory) HasBuilding(building string) bool {
	if _, ok := d.LookupBuilding(building); ok {
		return true
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, b := range d.vacant {
		if strings.EqualFold(b, building) {
			return true
		}
	}
	return false
}

// Buildings lists unique building numbers, ordered by number then suffix.
func (d *Directory) Buildings() []string {
	d.mu.RLock()
	seen := make(map[string]struct{}, len(d.companies)+len(d.vacant))
	buildings := make([]string, 0, len(d.companies)+len(d.vacant))
	add := func(b string) {
		if _, ok := seen[b]; ok {
			return
		}
		seen[b] = struct{}{}
		buildings = append(buildings, b)
	}
	for _, c := range d.companies {
		add(c.Building)
	}
	for _, b := range d.vacant {
		add(b)
	}
	d.mu.RUnlock()

	sort.SliceStable(buildings, func(i, j int) bool {
		return lessBuilding(buildings[i], buildings[j])
	})
	return buildings
}

// BuildingMarkers returns one arrow marker per building that shows a triangle.
func (d *Directory) BuildingMarkers() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, c := range d.All() {
		if !c.ShowTriangle {
			continue
		}
		f := geojson.NewFeature(c.Point())
		f.Properties = geojson.Properties{
			"direction": markerDirection,
			"label":     c.Building,
		}
		fc.Append(f)
	}
	return fc
}

var validate = validator.New()

func validateCompanies(companies []Company) error {
	for i, c := range companies {
		if err := validate.Struct(c); err != nil {
			return fmt.Errorf("company %d (%q): %w", i, c.Name, err)
		}
	}
	return nil
}

// withTriangles marks the first company of each building when none of them is marked.
func withTriangles(in []Company) []Company {
	out := append([]Company(nil), in...)
	marked := make(map[string]bool)
	for _, c := range out {
		if c.ShowTriangle {
			marked[c.Building] = true
		}
	}
	for i := range out {
		if !marked[out[i].Building] {
			out[i].ShowTriangle = true
			marked[out[i].Building] = true
		}
	}
	return out
}

var buildingPattern = regexp.MustCompile(`^(\d+)([A-Za-z]*)`)

func lessBuilding(a, b string) bool {
	am := buildingPattern.FindStringSubmatch(a)
	bm := buildingPattern.FindStringSubmatch(b)
	if am == nil || bm == nil {
		return a < b
	}
	an, _ := strconv.Atoi(am[1])
	bn, _ := strconv.Atoi(bm[1])
	if an != bn {
		return an < bn
	}
	return am[2] < bm[2]
}
