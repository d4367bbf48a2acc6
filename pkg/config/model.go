package config

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/stumble/whittle/pkg/clients/dcache"
	"github.com/stumble/whittle/pkg/passes"
)

// Config of a whittle process, read from WHITTLE_* by default.
type Config struct {
	// MaxIterations bounds transforms per pass run, 0 for no bound.
	MaxIterations int `default:"0"`
	// MaxRounds bounds rounds over the plan, 0 for no bound.
	MaxRounds     int           `default:"0"`
	OracleTimeout time.Duration `default:"60s"`
	CacheSizeMB   int           `default:"32"`
	// CacheTTL session, day, week, never or a duration.
	CacheTTL dcache.Retention `default:"day"`
	// RedisAddr enables the shared verdict cache when set.
	RedisAddr string
	RedisDB   int `default:"0"`
	// HistoryEnabled journals reductions to mysql, see mysql.ConfigFromEnv.
	HistoryEnabled bool `default:"false"`
	// MetricsAddr serves /metrics when set.
	MetricsAddr string
}

func FromEnv() (*Config, error) {
	return FromEnvPrefix("whittle")
}

func FromEnvPrefix(prefix string) (*Config, error) {
	config := &Config{}
	if err := envconfig.Process(prefix, config); err != nil {
		return nil, err
	}
	if config.CacheSizeMB < 1 {
		return nil, fmt.Errorf("invalid cache size: %dMB", config.CacheSizeMB)
	}
	return config, nil
}

// Plan the root structure of a plan xml file.
type Plan struct {
	XMLName xml.Name   `xml:"plan"`
	Name    string     `xml:"name,attr"`
	Imports []Import   `xml:"import"`
	Passes  []PassSpec `xml:"pass"`
}

// Import - passes of another plan file, run before the passes of this one.
type Import struct {
	Src string `xml:"src,attr"`
}

// PassSpec names a registered pass and its argument.
type PassSpec struct {
	Name string `xml:"name,attr"`
	Arg  string `xml:"arg,attr"`
}

func (p PassSpec) String() string {
	if p.Arg == "" {
		return p.Name
	}
	return p.Name + ":" + p.Arg
}

// IsValid return nil if valid.
func (p PassSpec) IsValid() error {
	if !passes.Known(p.Name) {
		return errors.New("unknown pass: " + p.Name)
	}
	return nil
}

// IsValid return nil if valid.
func (p Plan) IsValid() error {
	if !validName(p.Name) {
		return errors.New("invalid plan name: " + p.Name)
	}
	if len(p.Passes) == 0 {
		return errors.New("plan has no pass: " + p.Name)
	}
	for _, s := range p.Passes {
		if err := s.IsValid(); err != nil {
			return err
		}
	}
	return nil
}

// Build instantiates the passes of the plan, in order.
func (p Plan) Build() ([]passes.Pass, error) {
	rst := make([]passes.Pass, 0, len(p.Passes))
	for _, s := range p.Passes {
		pass, err := passes.Lookup(s.Name, s.Arg)
		if err != nil {
			return nil, fmt.Errorf("plan %s: %w", p.Name, err)
		}
		rst = append(rst, pass)
	}
	return rst, nil
}

// DefaultPlan - used when neither a plan file nor a pass list is given.
func DefaultPlan() Plan {
	return Plan{
		Name: "default",
		Passes: []PassSpec{
			{Name: "blank"},
			{Name: "lines"},
			{Name: "lines", Arg: "1"},
		},
	}
}

// ParsePassList builds an ad-hoc plan from "name[:arg],name[:arg]...".
func ParsePassList(list string) (Plan, error) {
	plan := Plan{Name: "adhoc"}
	for _, item := range commaSplitList(list) {
		name, arg := splitPassArg(item)
		plan.Passes = append(plan.Passes, PassSpec{Name: name, Arg: arg})
	}
	return plan, plan.IsValid()
}

func parsePlan(r io.Reader, path string, doImport bool) (*Plan, error) {
	bytes, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var data Plan
	err = xml.Unmarshal(bytes, &data)
	if err != nil {
		return nil, errors.New("xml unmarshal error: " + err.Error())
	}

	var imported []PassSpec
	for _, imp := range data.Imports {
		if !doImport {
			return nil, errors.New("nested import in " + path + ": " + imp.Src)
		}
		src := filepath.Join(filepath.Dir(path), imp.Src)
		// one layer import, plans importing each other would loop.
		importedPlan, err := parsePlanFromFileImport(src, false)
		if err != nil {
			return nil, err
		}
		imported = append(imported, importedPlan.Passes...)
	}
	data.Passes = append(imported, data.Passes...)

	if err := data.IsValid(); err != nil {
		return nil, err
	}
	return &data, nil
}

func parsePlanFromFileImport(path string, doImport bool) (*Plan, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return parsePlan(file, path, doImport)
}

// ParsePlanFromFile -
func ParsePlanFromFile(path string) (*Plan, error) {
	return parsePlanFromFileImport(path, true)
}
