package costing

const (
	TargetMarkup = 4.0
	TargetMargin = 60.0
	HotVelocity  = 20.0
	WarmVelocity = 5.0
)

type Level string

const (
	LevelGood Level = "good"
	LevelLow  Level = "low"

	LevelHot  Level = "hot"
	LevelWarm Level = "warm"
	LevelCold Level = "cold"
)

type Health struct {
	Markup   Level `json:"markup"`
	Margin   Level `json:"margin"`
	Velocity Level `json:"velocity"`
}

func Classify(m Metrics) Health {
	h := Health{Markup: LevelLow, Margin: LevelLow, Velocity: LevelCold}
	if m.MarkupFactor >= TargetMarkup {
		h.Markup = LevelGood
	}
	if m.ProfitMargin >= TargetMargin {
		h.Margin = LevelGood
	}
	switch {
	case m.SalesVelocity > HotVelocity:
		h.Velocity = LevelHot
	case m.SalesVelocity > WarmVelocity:
		h.Velocity = LevelWarm
	}
	return h
}
