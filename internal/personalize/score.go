// Engage - Commerce Behavioral Tracking and Content Personalization
// Copyright 2026 Platewise
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/platewise/engage

// Package personalize ranks content assets against a visitor's tag set and
// produces related-content recommendations.
package personalize

import "strings"

// Weights used by the relevance and similarity calculations.
const (
	neutralScore       = 0.5 // untagged assets
	partialMatchBonus  = 0.1 // per accumulated partial-match unit
	substringWeight    = 0.5 // one tag contains the other
	synonymWeight      = 0.3 // tags in the same taxonomy group
	specificityBonus   = 0.1 // assets with three or fewer tags
	specificityMaxTags = 3
	similarityBoost    = 0.3 // shared tags the user also carries
)

// Taxonomy groups tags that count as synonyms for partial matching. Two
// tags match when any group contains both.
type Taxonomy [][]string

// DefaultTaxonomy covers device, time-of-day, behavior, and the common
// dietary and fitness interest groups.
func DefaultTaxonomy() Taxonomy {
	return Taxonomy{
		{"DEVICE_MOBILE", "MOBILE", "SMARTPHONE"},
		{"DEVICE_DESKTOP", "DESKTOP", "COMPUTER"},
		{"TIME_MORNING", "MORNING", "AM"},
		{"TIME_AFTERNOON", "AFTERNOON", "PM"},
		{"TIME_EVENING", "EVENING", "NIGHT"},
		{"BEHAVIOR_FREQUENT", "LOYAL", "RETURNING"},
		{"BEHAVIOR_NEW", "FIRST_TIME", "NEWCOMER"},
		{"GYM", "FITNESS", "WORKOUT", "EXERCISE"},
		{"VEGAN", "VEGETARIAN", "PLANT_BASED"},
		{"HEALTHY", "NUTRITION", "WELLNESS"},
	}
}

// Synonyms reports whether two distinct tags share a taxonomy group.
func (t Taxonomy) Synonyms(a, b string) bool {
	for _, group := range t {
		inA, inB := false, false
		for _, name := range group {
			if name == a {
				inA = true
			}
			if name == b {
				inB = true
			}
		}
		if inA && inB {
			return true
		}
	}
	return false
}

// RelevanceScore rates how well an asset's tags match the user's tags,
// in [0, 1]. Untagged assets score a neutral 0.5. The base is the exact
// match ratio; partial matches (substring containment and taxonomy
// synonyms) add a small bonus, as does specific targeting with three or
// fewer tags.
func RelevanceScore(assetTags, userTags []string, taxonomy Taxonomy) float64 {
	if len(assetTags) == 0 {
		return neutralScore
	}

	exact := 0
	for _, tag := range assetTags {
		if containsString(userTags, tag) {
			exact++
		}
	}

	score := float64(exact) / float64(len(assetTags))
	score += partialMatches(assetTags, userTags, taxonomy) * partialMatchBonus

	if len(assetTags) <= specificityMaxTags {
		score += specificityBonus
	}

	return min(score, 1.0)
}

// partialMatches accumulates fractional match units across every pair of
// asset and user tags: substring containment counts 0.5, a taxonomy
// synonym counts 0.3. Exact matches are scored separately and skipped
// here.
func partialMatches(assetTags, userTags []string, taxonomy Taxonomy) float64 {
	var total float64
	for _, assetTag := range assetTags {
		for _, userTag := range userTags {
			if assetTag == userTag {
				continue
			}
			if strings.Contains(assetTag, userTag) || strings.Contains(userTag, assetTag) {
				total += substringWeight
			}
			if taxonomy.Synonyms(assetTag, userTag) {
				total += synonymWeight
			}
		}
	}
	return total
}

// Similarity rates how related two assets are, in [0, 1]: the shared-tag
// ratio over the larger tag set, boosted when the user carries some of
// the shared tags.
func Similarity(tagsA, tagsB, userTags []string) float64 {
	longest := max(len(tagsA), len(tagsB))
	if longest == 0 {
		return 0
	}

	var common []string
	for _, tag := range tagsA {
		if containsString(tagsB, tag) {
			common = append(common, tag)
		}
	}
	if len(common) == 0 {
		return 0
	}

	similarity := float64(len(common)) / float64(longest)

	userRelevant := 0
	for _, tag := range common {
		if containsString(userTags, tag) {
			userRelevant++
		}
	}
	if userRelevant > 0 {
		similarity += float64(userRelevant) / float64(len(common)) * similarityBoost
	}

	return min(similarity, 1.0)
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
