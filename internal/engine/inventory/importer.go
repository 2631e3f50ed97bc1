package inventory

import (
	"context"
	"database/sql"
	"io"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Exchange types.
const (
	ExchangeTechnosphere = "technosphere"
	ExchangeBiosphere    = "biosphere"
)

// ModelFile is the YAML import format of a model database.
type ModelFile struct {
	Project    string         `yaml:"project"`
	Databases  []DatabaseSpec `yaml:"databases"`
	Activities []ActivitySpec `yaml:"activities"`
	Exchanges  []ExchangeSpec `yaml:"exchanges"`
	Methods    []MethodSpec   `yaml:"methods"`
}

// DatabaseSpec declares a database. Background databases keep their exchanges fixed.
type DatabaseSpec struct {
	Name       string `yaml:"name"`
	Background bool   `yaml:"background"`
}

// ActivitySpec declares a unit process or an elementary flow.
type ActivitySpec struct {
	ID       int64  `yaml:"id"`
	Database string `yaml:"database"`
	Name     string `yaml:"name"`
	Location string `yaml:"location"`
	Category string `yaml:"category"`
	Type     string `yaml:"type"`
	Unit     string `yaml:"unit"`
}

// UncertaintySpec uses brightway uncertainty type codes.
type UncertaintySpec struct {
	Type    int      `yaml:"type"`
	Loc     *float64 `yaml:"loc"`
	Scale   *float64 `yaml:"scale"`
	Minimum *float64 `yaml:"minimum"`
	Maximum *float64 `yaml:"maximum"`
}

// ExchangeSpec links an input node into an output activity.
type ExchangeSpec struct {
	Input       int64            `yaml:"input"`
	Output      int64            `yaml:"output"`
	Amount      float64          `yaml:"amount"`
	Type        string           `yaml:"type"`
	Uncertainty *UncertaintySpec `yaml:"uncertainty"`
}

// MethodSpec is an impact method with its characterization factors.
type MethodSpec struct {
	Name    string       `yaml:"name"`
	Unit    string       `yaml:"unit"`
	Factors []FactorSpec `yaml:"factors"`
}

// FactorSpec characterizes one flow.
type FactorSpec struct {
	Flow   int64   `yaml:"flow"`
	Factor float64 `yaml:"factor"`
}

// DecodeModel parses a YAML model file.
func DecodeModel(r io.Reader) (*ModelFile, error) {
	var mf ModelFile
	if err := yaml.NewDecoder(r).Decode(&mf); err != nil {
		return nil, eris.Wrap(err, "inventory: decode model")
	}
	return &mf, nil
}

// Import writes mf into the store in one transaction.
func (s *Store) Import(ctx context.Context, mf *ModelFile) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "inventory: begin import")
	}
	defer tx.Rollback() //nolint:errcheck

	if mf.Project != "" {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO meta (key, value) VALUES ('project', ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, mf.Project); err != nil {
			return eris.Wrap(err, "inventory: write project")
		}
	}

	for _, d := range mf.Databases {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO databases (name, background) VALUES (?, ?)
			 ON CONFLICT(name) DO UPDATE SET background = excluded.background`,
			d.Name, d.Background); err != nil {
			return eris.Wrapf(err, "inventory: insert database %s", d.Name)
		}
	}

	for _, a := range mf.Activities {
		typ := a.Type
		if typ == "" {
			typ = "process"
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO activities (id, database, name, location, category, type, unit)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			a.ID, a.Database, a.Name, a.Location, a.Category, typ, a.Unit); err != nil {
			return eris.Wrapf(err, "inventory: insert activity %d", a.ID)
		}
	}

	// One exchange per (input, output) pair, so each parameter names one sample column.
	pairs := make(map[[2]int64]int, len(mf.Exchanges))
	for i, e := range mf.Exchanges {
		if e.Type != ExchangeTechnosphere && e.Type != ExchangeBiosphere {
			return eris.Errorf("inventory: exchange %d has unknown type %q", i, e.Type)
		}
		key := [2]int64{e.Input, e.Output}
		if j, ok := pairs[key]; ok {
			return eris.Errorf("inventory: exchanges %d and %d both link %d->%d", j, i, e.Input, e.Output)
		}
		pairs[key] = i
		u := e.Uncertainty
		if u == nil {
			u = &UncertaintySpec{}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO exchanges (input_id, output_id, amount, type, uncertainty_type, loc, scale, minimum, maximum)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.Input, e.Output, e.Amount, e.Type, u.Type,
			nullable(u.Loc), nullable(u.Scale), nullable(u.Minimum), nullable(u.Maximum)); err != nil {
			return eris.Wrapf(err, "inventory: insert exchange %d->%d", e.Input, e.Output)
		}
	}

	for _, m := range mf.Methods {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO methods (name, unit) VALUES (?, ?)
			 ON CONFLICT(name) DO UPDATE SET unit = excluded.unit`, m.Name, m.Unit); err != nil {
			return eris.Wrapf(err, "inventory: insert method %s", m.Name)
		}
		for _, f := range m.Factors {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO characterization_factors (method, flow_id, factor) VALUES (?, ?, ?)
				 ON CONFLICT(method, flow_id) DO UPDATE SET factor = excluded.factor`,
				m.Name, f.Flow, f.Factor); err != nil {
				return eris.Wrapf(err, "inventory: insert factor %s/%d", m.Name, f.Flow)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "inventory: commit import")
	}

	zap.L().Info("imported model",
		zap.String("component", "inventory.importer"),
		zap.Int("activities", len(mf.Activities)),
		zap.Int("exchanges", len(mf.Exchanges)),
		zap.Int("methods", len(mf.Methods)),
	)
	return nil
}

func nullable(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
