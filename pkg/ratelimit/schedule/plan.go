package schedule

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/vnykmshr/smoothrate/pkg/common/errors"
	"github.com/vnykmshr/smoothrate/pkg/common/validation"
)

const module = "schedule"

// Entry switches a limiter to Rate (and optionally Burst) each time Cron fires.
type Entry struct {
	Name  string  `yaml:"name"`
	Cron  string  `yaml:"cron"`
	Rate  float64 `yaml:"rate"`
	Burst *int    `yaml:"burst,omitempty"`
}

// Plan is an ordered set of entries evaluated in one time zone.
type Plan struct {
	// Location is an IANA zone name. Empty means time.Local.
	Location string  `yaml:"location,omitempty"`
	Entries  []Entry `yaml:"entries"`
}

// parser accepts standard five-field expressions, an optional leading
// seconds field and descriptors such as @hourly or @every 10m.
var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// LoadPlan decodes and validates a YAML plan. Unknown keys are rejected.
func LoadPlan(r io.Reader) (Plan, error) {
	var plan Plan

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&plan); err != nil {
		if err == io.EOF {
			return Plan{}, errors.NewValidationError(module, "plan", "", "cannot be empty")
		}
		return Plan{}, errors.NewOperationError(module, "LoadPlan", err)
	}

	if err := plan.Validate(); err != nil {
		return Plan{}, err
	}
	return plan, nil
}

// LoadPlanFile reads a YAML plan from path.
func LoadPlanFile(path string) (Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Plan{}, errors.NewOperationError(module, "LoadPlanFile", err).WithContext(path)
	}
	return LoadPlan(bytes.NewReader(data))
}

// Validate checks every entry and the time zone.
func (p Plan) Validate() error {
	if _, err := p.location(); err != nil {
		return err
	}
	if len(p.Entries) == 0 {
		return errors.NewValidationError(module, "entries", 0, "plan has no entries").
			WithHint("add at least one entry with a name, cron expression and rate")
	}

	seen := make(map[string]bool, len(p.Entries))
	for i, e := range p.Entries {
		if err := validation.ValidateNotEmpty(module, fmt.Sprintf("entries[%d].name", i), e.Name); err != nil {
			return err
		}
		if seen[e.Name] {
			return errors.NewValidationError(module, "name", e.Name, "duplicate entry name")
		}
		seen[e.Name] = true

		if err := validation.ValidateNotEmpty(module, e.Name+".cron", e.Cron); err != nil {
			return err
		}
		if _, err := parser.Parse(e.Cron); err != nil {
			return errors.NewValidationError(module, e.Name+".cron", e.Cron, err.Error())
		}
		if err := validation.ValidatePositiveFloat(module, e.Name+".rate", e.Rate); err != nil {
			return err
		}
		if e.Burst != nil {
			if err := validation.ValidateNonNegativeInt(module, e.Name+".burst", *e.Burst); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p Plan) location() (*time.Location, error) {
	if p.Location == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(p.Location)
	if err != nil {
		return nil, errors.NewValidationError(module, "location", p.Location, "unknown time zone").
			WithHint("use an IANA name such as UTC or Europe/Berlin")
	}
	return loc, nil
}
