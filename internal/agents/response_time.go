package agents

// ResponseTimeLabel turns an average reply time into the badge shown on the public page.
func ResponseTimeLabel(minutes int) string {
	switch {
	case minutes <= 0:
		return "Response time unknown"
	case minutes <= 15:
		return "Usually responds within minutes"
	case minutes <= 60:
		return "Usually responds within an hour"
	case minutes <= 240:
		return "Usually responds within a few hours"
	case minutes <= 1440:
		return "Usually responds within a day"
	default:
		return "Usually responds within a few days"
	}
}
