package validate

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/MrWong99/npcforge/internal/record"
	"github.com/MrWong99/npcforge/internal/schema"
)

// identifierRE is the character set allowed in shop, badge, guild and other
// cross-reference identifiers.
var identifierRE = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

const (
	maxTeamSize = 6
	dateLayout  = "2006-01-02"
)

type ruleFunc func(rec record.Record, c *collector)

// rulesFor returns the business rules of v. Every variant must have a case;
// TestRulesForEveryVariant enforces it.
func rulesFor(v schema.Variant) ruleFunc {
	switch v {
	case schema.Dialogue:
		return dialogueRules
	case schema.Merchant:
		return merchantRules
	case schema.Trainer:
		return trainerRules
	case schema.Healer:
		return healerRules
	case schema.GymLeader:
		return gymLeaderRules
	case schema.Transport:
		return transportRules
	case schema.Service:
		return serviceRules
	case schema.Minigame:
		return minigameRules
	case schema.Researcher:
		return researcherRules
	case schema.Guild:
		return guildRules
	case schema.Event:
		return eventRules
	case schema.QuestMaster:
		return questMasterRules
	}
	return nil
}

func dialogueRules(rec record.Record, c *collector) {
	checkIDList(rec, c, "dialogueIds")
}

func merchantRules(rec record.Record, c *collector) {
	raw, ok := present(rec, "shopId")
	id, isStr := raw.(string)
	switch {
	case !ok || (isStr && strings.TrimSpace(id) == ""):
		c.warn("shopId", "no shop id set; this merchant will be treated as a generic shop")
	case isStr:
		checkIdentifier(c, "shopId", id)
	}

	items := rec.Sequence("shopConfig.items")
	if dup, ok := firstDuplicate(items); ok {
		c.warn("shopConfig.items", fmt.Sprintf("item %q is listed more than once", dup))
	}

	for _, p := range LegacyShopPaths {
		if _, ok := present(rec, p); ok {
			c.warn(p, p+" uses the superseded shop format")
			c.suggest(p, "migrate "+p+" into shopType and shopConfig.items")
		}
	}
}

func trainerRules(rec record.Record, c *collector) {
	checkTeam(rec, c, "battleConfig.team")
}

func healerRules(rec record.Record, c *collector) {
	healType := rec.StringAt("healerConfig.healType")
	_, hasPercent := present(rec, "healerConfig.healPercent")
	switch {
	case healType == "partial" && !hasPercent:
		c.ruleError("healerConfig.healPercent", "partial heals need healerConfig.healPercent")
	case healType != "partial" && hasPercent:
		c.warn("healerConfig.healPercent", "healPercent is ignored unless healType is partial")
	}
	raw, _ := present(rec, "healerConfig.cost")
	if n, ok := schema.AsNumber(raw); ok && n > 0 && healType == "full" {
		c.suggest("healerConfig.cost", "full heals are usually free; players expect a healer to restore them at no cost")
	}
}

func gymLeaderRules(rec record.Record, c *collector) {
	checkTeam(rec, c, "gymConfig.team")
	if id := rec.StringAt("gymConfig.badgeId"); strings.TrimSpace(id) != "" {
		checkIdentifier(c, "gymConfig.badgeId", id)
	}
	if id := rec.StringAt("gymConfig.gymId"); strings.TrimSpace(id) != "" {
		checkIdentifier(c, "gymConfig.gymId", id)
	}
}

func transportRules(rec record.Record, c *collector) {
	const path = "transportConfig.destinations"
	seen := make(map[string]bool)
	for i, d := range rec.Sequence(path) {
		var zone string
		switch t := d.(type) {
		case string:
			zone = t
		case map[string]any:
			zone, _ = t["zoneId"].(string)
			if raw, ok := t["cost"]; ok && raw != nil {
				if n, isNum := schema.AsNumber(raw); !isNum || n < 0 {
					c.ruleError(path, fmt.Sprintf("destination %d has a negative or non-numeric cost", i+1))
				}
			}
		}
		if strings.TrimSpace(zone) == "" {
			c.ruleError(path, fmt.Sprintf("destination %d needs a zoneId", i+1))
			continue
		}
		if seen[zone] {
			c.warn(path, fmt.Sprintf("zone %q is listed more than once", zone))
		}
		seen[zone] = true
	}
}

func serviceRules(rec record.Record, c *collector) {
	if rec.StringAt("serviceConfig.serviceType") == "move_tutor" && len(rec.Sequence("serviceConfig.moves")) == 0 {
		c.warn("serviceConfig.moves", "a move tutor without moves has nothing to teach")
	}
}

func minigameRules(rec record.Record, c *collector) {
	if id := rec.StringAt("minigameConfig.gameId"); strings.TrimSpace(id) != "" {
		checkIdentifier(c, "minigameConfig.gameId", id)
	}
	checkWholeNumber(rec, c, "minigameConfig.maxPlayers")
	if rec.StringAt("minigameConfig.gameType") == "race" {
		if _, ok := present(rec, "minigameConfig.timeLimitSeconds"); !ok {
			c.suggest("minigameConfig.timeLimitSeconds", "races usually have a time limit")
		}
	}
}

func researcherRules(rec record.Record, c *collector) {
	checkWholeNumber(rec, c, "researchConfig.requiredEntries")
}

func guildRules(rec record.Record, c *collector) {
	if id := rec.StringAt("guildConfig.guildId"); strings.TrimSpace(id) != "" {
		checkIdentifier(c, "guildConfig.guildId", id)
	}
	if dup, ok := firstDuplicate(rec.Sequence("guildConfig.services")); ok {
		c.warn("guildConfig.services", fmt.Sprintf("service %q is listed more than once", dup))
	}
	checkWholeNumber(rec, c, "guildConfig.joinRequirements.minLevel")
}

func eventRules(rec record.Record, c *collector) {
	if id := rec.StringAt("eventConfig.eventId"); strings.TrimSpace(id) != "" {
		checkIdentifier(c, "eventConfig.eventId", id)
	}
	start, startOK := parseDate(rec, c, "eventConfig.startDate")
	end, endOK := parseDate(rec, c, "eventConfig.endDate")
	if startOK && endOK && end.Before(start) {
		c.ruleError("eventConfig.endDate", "endDate is before startDate")
	}
}

func questMasterRules(rec record.Record, c *collector) {
	ids := checkIDList(rec, c, "questConfig.questIds")
	raw, ok := present(rec, "questConfig.maxActive")
	if n, isNum := schema.AsNumber(raw); ok && isNum && ids > 0 && int(n) > ids {
		c.warn("questConfig.maxActive", fmt.Sprintf("maxActive %d exceeds the %d quests offered", int(n), ids))
	}
}

// checkIdentifier applies the shared identifier rules: whitespace is an
// error, characters outside [A-Za-z0-9_-] are a warning.
func checkIdentifier(c *collector, path, id string) {
	switch {
	case strings.ContainsFunc(id, unicode.IsSpace):
		c.ruleError(path, path+" must not contain whitespace")
	case !identifierRE.MatchString(id):
		c.warn(path, path+" should only contain letters, digits, '_' and '-'")
	}
}

// checkIDList validates a sequence of identifier strings and returns how many
// entries it holds.
func checkIDList(rec record.Record, c *collector, path string) int {
	ids := rec.Sequence(path)
	for i, e := range ids {
		s, ok := e.(string)
		if !ok || strings.TrimSpace(s) == "" {
			c.ruleError(path, fmt.Sprintf("entry %d of %s must be a non-empty id", i+1, path))
			continue
		}
		if strings.ContainsFunc(s, unicode.IsSpace) {
			c.ruleError(path, fmt.Sprintf("entry %d of %s must not contain whitespace", i+1, path))
		}
	}
	if dup, ok := firstDuplicate(ids); ok {
		c.warn(path, fmt.Sprintf("%q is listed more than once", dup))
	}
	return len(ids)
}

func checkTeam(rec record.Record, c *collector, path string) {
	team := rec.Sequence(path)
	if len(team) > maxTeamSize {
		c.ruleError(path, fmt.Sprintf("a team holds at most %d creatures, got %d", maxTeamSize, len(team)))
	}
	for i, member := range team {
		var species string
		switch t := member.(type) {
		case string:
			species = t
		case map[string]any:
			species, _ = t["species"].(string)
			if raw, ok := t["level"]; ok && raw != nil {
				if n, isNum := schema.AsNumber(raw); !isNum || n < 1 || n > 100 {
					c.ruleError(path, fmt.Sprintf("team member %d level must be in [1, 100]", i+1))
				}
			}
		}
		if strings.TrimSpace(species) == "" {
			c.ruleError(path, fmt.Sprintf("team member %d must name a species", i+1))
		}
	}
}

func checkWholeNumber(rec record.Record, c *collector, path string) {
	raw, ok := present(rec, path)
	if !ok {
		return
	}
	if n, isNum := schema.AsNumber(raw); isNum && n != math.Trunc(n) {
		c.ruleError(path, path+" must be a whole number")
	}
}

// parseDate reads an optional date. Empty values are skipped.
func parseDate(rec record.Record, c *collector, path string) (time.Time, bool) {
	s := strings.TrimSpace(rec.StringAt(path))
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		c.ruleError(path, path+" must be a date in YYYY-MM-DD format")
		return time.Time{}, false
	}
	return t, true
}

// firstDuplicate returns the first scalar value that appears twice in seq.
func firstDuplicate(seq []any) (string, bool) {
	seen := make(map[string]bool, len(seq))
	for _, e := range seq {
		s, ok := e.(string)
		if !ok {
			continue
		}
		if seen[s] {
			return s, true
		}
		seen[s] = true
	}
	return "", false
}
