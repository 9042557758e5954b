package vision

// Per-image USD cost estimates by model. Estimates only; billing truth lives
// with the provider.
var costPerImage = map[string]float64{
	"gpt-4-vision-preview": 0.01,
	"gpt-4o":               0.0075,
	"gpt-4o-mini":          0.00025,
}

const defaultCostPerImage = 0.0075

// CostPerImage returns the estimated cost of one image call for the model.
// Unknown models use the gpt-4o estimate.
func CostPerImage(model string) float64 {
	if c, ok := costPerImage[model]; ok {
		return c
	}
	return defaultCostPerImage
}
