package metrics

const (
	LabelAction    = "action"
	LabelErrorKind = "kind"
)
