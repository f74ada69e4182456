// Package features builds model input rows from athlete queries and reference tables.
package features

import (
	"github.com/yourusername/race-time-predictor/internal/models"
)

// EliteAgeGroup is the age-independent category every elite athlete falls in
const EliteAgeGroup = "00"

var (
	ageLimits = []int{0, 18, 25, 30, 35, 40, 45, 50, 55, 60, 65, 70, 75, 80, 85}
	ageGroups = []string{"00", "18-24", "25-29", "30-34", "35-39", "40-44", "45-49", "50-54", "55-59", "60-64", "65-69", "70-74", "75-79", "80-84", "85-89"}
)

// Band maps an age to the lower bound of its band and the band's label.
// Ages past the last threshold stay in the last band. Elite athletes always
// land in band 0.
func Band(age int, isElite bool) (int, string, error) {
	if age < 0 {
		return 0, "", &models.InputError{Field: "age", Value: age, Err: models.ErrInvalidAge}
	}
	if isElite {
		return 0, EliteAgeGroup, nil
	}

	idx := 0
	for i, limit := range ageLimits {
		if limit > age {
			break
		}
		idx = i
	}
	return ageLimits[idx], ageGroups[idx], nil
}
