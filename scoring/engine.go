// Package scoring turns a blind guess into points. Everything here is pure:
// the same guess, wine and rule always produce the same breakdown.
package scoring

// Field names one of the six scored attributes of a wine.
type Field string

const (
	FieldCountry   Field = "country"
	FieldRegion    Field = "region"
	FieldProducer  Field = "producer"
	FieldName      Field = "name"
	FieldVintage   Field = "vintage"
	FieldVarietals Field = "varietals"
)

// Fields lists every scored attribute in display order.
var Fields = []Field{FieldCountry, FieldRegion, FieldProducer, FieldName, FieldVintage, FieldVarietals}

// Attributes is the identity of a wine, either the real one or a guess.
type Attributes struct {
	Country   string   `json:"country"`
	Region    string   `json:"region"`
	Producer  string   `json:"producer"`
	Name      string   `json:"name"`
	Vintage   string   `json:"vintage"`
	Varietals []string `json:"varietals"`
}

func (a Attributes) scalar(f Field) string {
	switch f {
	case FieldCountry:
		return a.Country
	case FieldRegion:
		return a.Region
	case FieldProducer:
		return a.Producer
	case FieldName:
		return a.Name
	case FieldVintage:
		return a.Vintage
	}
	return ""
}

// Rule holds the point value of each attribute for one tasting.
type Rule struct {
	Country          int  `json:"country"`
	Region           int  `json:"region"`
	Producer         int  `json:"producer"`
	Name             int  `json:"name"`
	Vintage          int  `json:"vintage"`
	Varietals        int  `json:"varietals"`
	AnyVarietalPoint bool `json:"any_varietal_point"`
}

// Points returns the configured value of f.
func (r Rule) Points(f Field) int {
	switch f {
	case FieldCountry:
		return r.Country
	case FieldRegion:
		return r.Region
	case FieldProducer:
		return r.Producer
	case FieldName:
		return r.Name
	case FieldVintage:
		return r.Vintage
	case FieldVarietals:
		return r.Varietals
	}
	return 0
}

// FieldResult is the outcome for one attribute. Value is the configured point
// value; Points is what was actually awarded.
type FieldResult struct {
	Field   Field `json:"field"`
	Matched bool  `json:"matched"`
	Value   int   `json:"value"`
	Points  int   `json:"points"`
}

// VarietalResult reports whether one guessed grape was in the wine.
type VarietalResult struct {
	Token   string `json:"token"`
	Matched bool   `json:"matched"`
}

// Breakdown is the full result of scoring one guess against one wine.
type Breakdown struct {
	Fields          []FieldResult    `json:"fields"`
	Varietals       []VarietalResult `json:"varietals"`
	VarietalMatches int              `json:"varietal_matches"`
	Total           int              `json:"total"`
}

// Field returns the result for f.
func (b Breakdown) Field(f Field) (FieldResult, bool) {
	for _, r := range b.Fields {
		if r.Field == f {
			return r, true
		}
	}
	return FieldResult{}, false
}

// Varietal returns the result for a normalized grape token.
func (b Breakdown) Varietal(token string) (VarietalResult, bool) {
	for _, v := range b.Varietals {
		if v.Token == token {
			return v, true
		}
	}
	return VarietalResult{}, false
}

// Score computes the breakdown of guess against wine under rule.
//
// A scalar attribute earns its value when the value is positive and the
// normalized guess equals the wine. Varietals either earn their value once per
// matched grape (AnyVarietalPoint) or once when the guessed set equals the
// wine's set. The total never goes below zero.
func Score(guess, wine Attributes, rule Rule) Breakdown {
	b := Breakdown{Fields: make([]FieldResult, 0, len(Fields))}

	for _, f := range Fields[:5] {
		value := rule.Points(f)
		var matched bool
		if f == FieldVintage {
			matched = equalVintage(guess.Vintage, wine.Vintage)
		} else {
			matched = equalScalar(guess.scalar(f), wine.scalar(f))
		}
		res := FieldResult{Field: f, Matched: matched, Value: value}
		if matched && value > 0 {
			res.Points = value
		}
		b.Fields = append(b.Fields, res)
		b.Total += res.Points
	}

	wineSet, _ := tokenSet(wine.Varietals)
	guessSet, guessOrdered := tokenSet(guess.Varietals)
	b.Varietals = make([]VarietalResult, 0, len(guessOrdered))
	for _, token := range guessOrdered {
		_, ok := wineSet[token]
		if ok {
			b.VarietalMatches++
		}
		b.Varietals = append(b.Varietals, VarietalResult{Token: token, Matched: ok})
	}

	varietals := FieldResult{Field: FieldVarietals, Value: rule.Varietals}
	if rule.AnyVarietalPoint {
		varietals.Matched = b.VarietalMatches > 0
		if rule.Varietals > 0 {
			varietals.Points = b.VarietalMatches * rule.Varietals
		}
	} else {
		varietals.Matched = len(guessSet) > 0 && len(guessSet) == len(wineSet) && b.VarietalMatches == len(wineSet)
		if varietals.Matched && rule.Varietals > 0 {
			varietals.Points = rule.Varietals
		}
	}
	b.Fields = append(b.Fields, varietals)
	b.Total += varietals.Points

	if b.Total < 0 {
		b.Total = 0
	}
	return b
}
