package config

// CategoryWeights orders command categories in generated docs. Unknown
// categories sort last.
var CategoryWeights = map[string]int{
	"🎵 Music":        10,
	"🛠️ Maintenance": 60,
}

// CategoryWeight returns the sort weight for a command category.
func CategoryWeight(category string) int {
	if w, ok := CategoryWeights[category]; ok {
		return w
	}
	return 100
}
