package inventory

import (
	"math"
	"math/rand/v2"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/stat/distuv"
)

type sampler interface {
	Rand() float64
}

type negated struct{ s sampler }

func (n negated) Rand() float64 { return -n.s.Rand() }

// newSampler builds the distribution of one exchange amount.
func newSampler(e exchange, src rand.Source) (sampler, error) {
	u := e.unc
	switch u.typ {
	case UncertaintyLognormal:
		if !u.scale.Valid || u.scale.Float64 <= 0 {
			return nil, eris.Errorf("inventory: exchange %d: lognormal needs a positive scale", e.id)
		}
		mu := math.Log(math.Abs(e.amount))
		if u.loc.Valid {
			mu = u.loc.Float64
		}
		var s sampler = distuv.LogNormal{Mu: mu, Sigma: u.scale.Float64, Src: src}
		if e.amount < 0 {
			s = negated{s}
		}
		return s, nil
	case UncertaintyNormal:
		if !u.scale.Valid || u.scale.Float64 <= 0 {
			return nil, eris.Errorf("inventory: exchange %d: normal needs a positive scale", e.id)
		}
		mu := e.amount
		if u.loc.Valid {
			mu = u.loc.Float64
		}
		return distuv.Normal{Mu: mu, Sigma: u.scale.Float64, Src: src}, nil
	case UncertaintyUniform:
		if !u.minimum.Valid || !u.maximum.Valid || u.minimum.Float64 >= u.maximum.Float64 {
			return nil, eris.Errorf("inventory: exchange %d: uniform needs minimum < maximum", e.id)
		}
		return distuv.Uniform{Min: u.minimum.Float64, Max: u.maximum.Float64, Src: src}, nil
	case UncertaintyTriangular:
		if !u.minimum.Valid || !u.maximum.Valid || u.minimum.Float64 >= u.maximum.Float64 {
			return nil, eris.Errorf("inventory: exchange %d: triangular needs minimum < maximum", e.id)
		}
		mode := e.amount
		if u.loc.Valid {
			mode = u.loc.Float64
		}
		if mode < u.minimum.Float64 || mode > u.maximum.Float64 {
			return nil, eris.Errorf("inventory: exchange %d: triangular mode outside [minimum, maximum]", e.id)
		}
		return distuv.NewTriangle(u.minimum.Float64, u.maximum.Float64, mode, src), nil
	default:
		return nil, eris.Errorf("inventory: exchange %d: unsupported uncertainty type %d", e.id, u.typ)
	}
}
