package ai

import (
	"errors"
	"fmt"
	"strings"
)

// validateAnalysis checks a parsed model response against the metadata
// contract. Keyword overflow is coerced by truncating to MaxKeywords;
// every other violation is returned as an error whose text is fed back
// to the model for a retry.
func validateAnalysis(analysis *PhotoAnalysis, opts AnalyzeOptions) error {
	if strings.TrimSpace(analysis.Title) == "" {
		return errors.New("title is missing")
	}
	if strings.TrimSpace(analysis.Description) == "" {
		return errors.New("description is missing")
	}

	if analysis.Category == "" {
		return errors.New("category is missing")
	}
	if len(opts.Categories) > 0 && !containsString(opts.Categories, analysis.Category) {
		return fmt.Errorf("category %q is not in the allowed list", analysis.Category)
	}

	analysis.Keywords = cleanKeywords(analysis.Keywords)
	if len(analysis.Keywords) < opts.MinKeywords {
		return fmt.Errorf("%d keywords returned, at least %d required", len(analysis.Keywords), opts.MinKeywords)
	}
	if len(analysis.Keywords) > opts.MaxKeywords {
		analysis.Keywords = analysis.Keywords[:opts.MaxKeywords]
	}

	if analysis.Quality == nil {
		return errors.New("quality analysis is missing")
	}
	if analysis.Quality.Score < 1 || analysis.Quality.Score > 10 {
		return fmt.Errorf("quality score %d is out of range 1-10", analysis.Quality.Score)
	}

	return nil
}

// cleanKeywords trims whitespace and drops empty and duplicate entries
// while preserving order. Duplicates are matched case-insensitively.
func cleanKeywords(keywords []string) []string {
	seen := make(map[string]bool, len(keywords))
	cleaned := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		key := strings.ToLower(kw)
		if seen[key] {
			continue
		}
		seen[key] = true
		cleaned = append(cleaned, kw)
	}
	return cleaned
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

// parseFeedback builds the retry message for a JSON parse failure.
func parseFeedback(err error) string {
	return fmt.Sprintf("JSON parse error: %v. Please fix the JSON and try again. Remember to escape quotes inside strings with backslash.", err)
}

// validationFeedback builds the retry message for a contract violation.
func validationFeedback(err error) string {
	return fmt.Sprintf("Invalid analysis: %v. Please fix the response and return the full corrected JSON object.", err)
}
