package schema

import (
	"fmt"
	"sync"
)

// fieldOpt configures a [Field] during catalog construction.
type fieldOpt func(*Field)

func field(path string, kind Kind, label string, opts ...fieldOpt) Field {
	f := Field{Path: path, Kind: kind, Label: label}
	for _, o := range opts {
		o(&f)
	}
	return f
}

func help(h string) fieldOpt { return func(f *Field) { f.Help = h } }

func withDefault(v any) fieldOpt { return func(f *Field) { f.Default = v } }

func options(opts ...string) fieldOpt {
	return func(f *Field) { f.Options = opts }
}

func bounds(lo, hi float64) fieldOpt {
	return func(f *Field) { f.Min, f.Max = &lo, &hi }
}

func atLeast(lo float64) fieldOpt { return func(f *Field) { f.Min = &lo } }

func visibleWhen(path string, equals any) fieldOpt {
	return func(f *Field) { f.VisibleWhen = &Condition{Path: path, Equals: equals} }
}

type sectionSpec struct {
	name   string
	label  string
	fields []Field
}

// variantSpec is the per-variant case of the catalog.
type variantSpec struct {
	label        string
	description  string
	sections     []sectionSpec
	required     []string
	stepRequired []string
	suggested    []string
	template     map[string]any
}

// specFor returns the catalog entry for v. Adding a variant constant without a
// case here fails TestEveryVariantHasDescriptor.
func specFor(v Variant) (variantSpec, bool) {
	switch v {
	case Dialogue:
		return dialogueSpec(), true
	case Merchant:
		return merchantSpec(), true
	case Trainer:
		return trainerSpec(), true
	case Healer:
		return healerSpec(), true
	case GymLeader:
		return gymLeaderSpec(), true
	case Transport:
		return transportSpec(), true
	case Service:
		return serviceSpec(), true
	case Minigame:
		return minigameSpec(), true
	case Researcher:
		return researcherSpec(), true
	case Guild:
		return guildSpec(), true
	case Event:
		return eventSpec(), true
	case QuestMaster:
		return questMasterSpec(), true
	}
	return variantSpec{}, false
}

// build turns a variant spec into a descriptor, prepending universal sections.
func (s variantSpec) build(v Variant) *Descriptor {
	d := &Descriptor{
		Variant:      v,
		Label:        s.label,
		Description:  s.description,
		Fields:       make(map[string]Field),
		Required:     s.required,
		StepRequired: s.stepRequired,
		Suggested:    s.suggested,
		Template:     s.template,
	}
	for _, sec := range append(universalSections(), s.sections...) {
		out := Section{Name: sec.name, Label: sec.label}
		for _, f := range sec.fields {
			out.Fields = append(out.Fields, f.Path)
			d.Fields[f.Path] = f
		}
		d.Sections = append(d.Sections, out)
	}
	return d
}

var (
	builtinOnce sync.Once
	builtin     *Registry
)

// Builtin returns the compiled-in catalog. It panics if the catalog is
// internally inconsistent, which is a programming error caught by tests.
func Builtin() *Registry {
	builtinOnce.Do(func() {
		descs := make([]*Descriptor, 0, len(allVariants))
		for _, v := range allVariants {
			spec, ok := specFor(v)
			if !ok {
				panic(fmt.Sprintf("schema: variant %q has no catalog entry", v))
			}
			descs = append(descs, spec.build(v))
		}
		r, err := NewRegistry(descs...)
		if err != nil {
			panic(err.Error())
		}
		builtin = r
	})
	return builtin
}

func dialogueSpec() variantSpec {
	return variantSpec{
		label:       "Dialogue giver",
		description: "Talks to the player using one or more dialogue trees.",
		sections: []sectionSpec{{
			name:  "dialogue",
			label: "Dialogue",
			fields: []Field{
				field("dialogueIds", KindSequence, "Dialogue IDs", help("Dialogue tree identifiers, in play order.")),
				field("dialogueMode", KindSelection, "Dialogue mode",
					options("sequential", "random", "conditional"), withDefault("sequential")),
				field("repeatable", KindBoolean, "Repeatable", withDefault(true)),
			},
		}},
		required:     []string{"dialogueIds"},
		stepRequired: []string{"dialogueIds"},
		template: map[string]any{
			"dialogueIds":  []any{},
			"dialogueMode": "sequential",
			"repeatable":   true,
		},
	}
}

func merchantSpec() variantSpec {
	return variantSpec{
		label:       "Merchant",
		description: "Runs a shop that buys and sells items.",
		sections: []sectionSpec{
			{
				name:  "shop",
				label: "Shop",
				fields: []Field{
					field("shopId", KindString, "Shop ID",
						help("Letters, digits, underscores and hyphens. Empty means a generic shop.")),
					field("shopType", KindSelection, "Shop type",
						options("general", "items", "equipment", "rare", "black_market"), withDefault("general")),
				},
			},
			{
				name:  "shopConfig",
				label: "Pricing and inventory",
				fields: []Field{
					field("shopConfig.currency", KindSelection, "Currency",
						options("gold", "tokens", "gems"), withDefault("gold")),
					field("shopConfig.priceMultiplier", KindNumber, "Price multiplier", bounds(0.1, 10), withDefault(1.0)),
					field("shopConfig.restockHours", KindNumber, "Restock (hours)", atLeast(0), withDefault(24.0)),
					field("shopConfig.items", KindSequence, "Items", help("Item ids sold by this shop.")),
				},
			},
		},
		required:     []string{"shopType"},
		stepRequired: []string{"shopId", "shopType"},
		suggested:    []string{"shopConfig.items"},
		template: map[string]any{
			"shopId":   "",
			"shopType": "general",
			"shopConfig": map[string]any{
				"currency":        "gold",
				"priceMultiplier": 1.0,
				"restockHours":    24.0,
				"items":           []any{},
			},
		},
	}
}

func trainerSpec() variantSpec {
	return variantSpec{
		label:       "Trainer",
		description: "Challenges the player to a battle.",
		sections: []sectionSpec{
			{
				name:  "trainer",
				label: "Trainer",
				fields: []Field{
					field("trainerClass", KindSelection, "Trainer class",
						options("youngster", "ace", "veteran", "rival", "elite"), withDefault("youngster")),
				},
			},
			{
				name:  "battleConfig",
				label: "Battle",
				fields: []Field{
					field("battleConfig.team", KindSequence, "Team", help("Between one and six creatures.")),
					field("battleConfig.levelCap", KindNumber, "Level cap", bounds(1, 100), withDefault(50.0)),
					field("battleConfig.rewardMoney", KindNumber, "Reward money", atLeast(0), withDefault(100.0)),
					field("battleConfig.rematchAllowed", KindBoolean, "Rematch allowed", withDefault(false)),
					field("battleConfig.introDialogue", KindString, "Intro dialogue"),
				},
			},
		},
		required:     []string{"battleConfig.team"},
		stepRequired: []string{"battleConfig.team"},
		suggested:    []string{"battleConfig.introDialogue"},
		template: map[string]any{
			"trainerClass": "youngster",
			"battleConfig": map[string]any{
				"team":           []any{},
				"levelCap":       50.0,
				"rewardMoney":    100.0,
				"rematchAllowed": false,
			},
		},
	}
}

func healerSpec() variantSpec {
	return variantSpec{
		label:       "Healer",
		description: "Restores the player's party.",
		sections: []sectionSpec{{
			name:  "healerConfig",
			label: "Healing",
			fields: []Field{
				field("healerConfig.healType", KindSelection, "Heal type",
					options("full", "partial", "status"), withDefault("full")),
				field("healerConfig.cost", KindNumber, "Cost", atLeast(0), withDefault(0.0)),
				field("healerConfig.healPercent", KindNumber, "Heal percent",
					bounds(1, 100), withDefault(50.0), visibleWhen("healerConfig.healType", "partial")),
				field("healerConfig.message", KindString, "Message"),
			},
		}},
		required:     []string{"healerConfig.healType"},
		stepRequired: []string{"healerConfig.healType"},
		suggested:    []string{"healerConfig.message"},
		template: map[string]any{
			"healerConfig": map[string]any{
				"healType": "full",
				"cost":     0.0,
			},
		},
	}
}

func gymLeaderSpec() variantSpec {
	return variantSpec{
		label:       "Gym leader",
		description: "Guards a gym badge behind a battle.",
		sections: []sectionSpec{
			{
				name:  "gymConfig",
				label: "Gym",
				fields: []Field{
					field("gymConfig.gymId", KindString, "Gym ID"),
					field("gymConfig.badgeId", KindString, "Badge ID"),
					field("gymConfig.badgeName", KindString, "Badge name"),
					field("gymConfig.specialty", KindSelection, "Specialty",
						options("normal", "fire", "water", "grass", "electric", "rock", "psychic", "ghost", "dragon"),
						withDefault("normal")),
					field("gymConfig.requiredBadges", KindNumber, "Required badges", bounds(0, 8), withDefault(0.0)),
					field("gymConfig.levelCap", KindNumber, "Level cap", bounds(1, 100), withDefault(20.0)),
				},
			},
			{
				name:  "gymTeam",
				label: "Team",
				fields: []Field{
					field("gymConfig.team", KindSequence, "Team", help("Between one and six creatures.")),
				},
			},
		},
		required:     []string{"gymConfig.badgeId", "gymConfig.team"},
		stepRequired: []string{"gymConfig.badgeId", "gymConfig.team"},
		suggested:    []string{"gymConfig.gymId", "gymConfig.badgeName"},
		template: map[string]any{
			"gymConfig": map[string]any{
				"gymId":          "",
				"badgeId":        "",
				"badgeName":      "",
				"specialty":      "normal",
				"requiredBadges": 0.0,
				"levelCap":       20.0,
				"team":           []any{},
			},
		},
	}
}

func transportSpec() variantSpec {
	return variantSpec{
		label:       "Transport",
		description: "Moves the player to other zones.",
		sections: []sectionSpec{{
			name:  "transportConfig",
			label: "Transport",
			fields: []Field{
				field("transportConfig.transportType", KindSelection, "Transport type",
					options("boat", "flight", "teleport", "train"), withDefault("boat")),
				field("transportConfig.destinations", KindSequence, "Destinations",
					help("Each destination is a mapping with zoneId and optional x, y and cost.")),
				field("transportConfig.requiresItem", KindString, "Required item"),
				field("transportConfig.confirmTravel", KindBoolean, "Confirm before travel", withDefault(true)),
			},
		}},
		required:     []string{"transportConfig.destinations"},
		stepRequired: []string{"transportConfig.destinations"},
		template: map[string]any{
			"transportConfig": map[string]any{
				"transportType": "boat",
				"destinations":  []any{},
				"confirmTravel": true,
			},
		},
	}
}

func serviceSpec() variantSpec {
	return variantSpec{
		label:       "Service provider",
		description: "Offers a utility service such as storage or move tutoring.",
		sections: []sectionSpec{{
			name:  "serviceConfig",
			label: "Service",
			fields: []Field{
				field("serviceConfig.serviceType", KindSelection, "Service type",
					options("storage", "name_rater", "move_tutor", "move_deleter", "daycare", "bank"),
					withDefault("storage")),
				field("serviceConfig.cost", KindNumber, "Cost", atLeast(0), withDefault(0.0)),
				field("serviceConfig.moves", KindSequence, "Moves taught",
					visibleWhen("serviceConfig.serviceType", "move_tutor")),
			},
		}},
		required:     []string{"serviceConfig.serviceType"},
		stepRequired: []string{"serviceConfig.serviceType"},
		template: map[string]any{
			"serviceConfig": map[string]any{
				"serviceType": "storage",
				"cost":        0.0,
			},
		},
	}
}

func minigameSpec() variantSpec {
	return variantSpec{
		label:       "Minigame host",
		description: "Hosts a minigame with entry costs and rewards.",
		sections: []sectionSpec{{
			name:  "minigameConfig",
			label: "Minigame",
			fields: []Field{
				field("minigameConfig.gameId", KindString, "Game ID"),
				field("minigameConfig.gameType", KindSelection, "Game type",
					options("slots", "quiz", "race", "fishing", "memory"), withDefault("quiz")),
				field("minigameConfig.entryCost", KindNumber, "Entry cost", atLeast(0), withDefault(0.0)),
				field("minigameConfig.maxPlayers", KindNumber, "Max players", bounds(1, 8), withDefault(1.0)),
				field("minigameConfig.timeLimitSeconds", KindNumber, "Time limit (seconds)", atLeast(0)),
				field("minigameConfig.rewards", KindSequence, "Rewards"),
			},
		}},
		required:     []string{"minigameConfig.gameType"},
		stepRequired: []string{"minigameConfig.gameId", "minigameConfig.gameType"},
		suggested:    []string{"minigameConfig.rewards"},
		template: map[string]any{
			"minigameConfig": map[string]any{
				"gameId":     "",
				"gameType":   "quiz",
				"entryCost":  0.0,
				"maxPlayers": 1.0,
				"rewards":    []any{},
			},
		},
	}
}

func researcherSpec() variantSpec {
	return variantSpec{
		label:       "Researcher",
		description: "Rewards the player for completing research entries.",
		sections: []sectionSpec{{
			name:  "researchConfig",
			label: "Research",
			fields: []Field{
				field("researchConfig.topic", KindSelection, "Topic",
					options("bestiary", "fossils", "artifacts", "flora"), withDefault("bestiary")),
				field("researchConfig.requiredEntries", KindNumber, "Required entries", atLeast(1), withDefault(10.0)),
				field("researchConfig.rewards", KindSequence, "Rewards"),
			},
		}},
		required:     []string{"researchConfig.topic"},
		stepRequired: []string{"researchConfig.topic"},
		suggested:    []string{"researchConfig.rewards"},
		template: map[string]any{
			"researchConfig": map[string]any{
				"topic":           "bestiary",
				"requiredEntries": 10.0,
				"rewards":         []any{},
			},
		},
	}
}

func guildSpec() variantSpec {
	return variantSpec{
		label:       "Guild agent",
		description: "Recruits players into a guild and offers guild services.",
		sections: []sectionSpec{
			{
				name:  "guildConfig",
				label: "Guild",
				fields: []Field{
					field("guildConfig.guildId", KindString, "Guild ID"),
					field("guildConfig.rank", KindSelection, "Rank",
						options("recruiter", "officer", "master"), withDefault("recruiter")),
					field("guildConfig.services", KindSequence, "Services"),
				},
			},
			{
				name:  "joinRequirements",
				label: "Join requirements",
				fields: []Field{
					field("guildConfig.joinRequirements.minLevel", KindNumber, "Minimum level", bounds(1, 100), withDefault(1.0)),
					field("guildConfig.joinRequirements.cost", KindNumber, "Joining fee", atLeast(0), withDefault(0.0)),
				},
			},
		},
		required:     []string{"guildConfig.guildId"},
		stepRequired: []string{"guildConfig.guildId"},
		suggested:    []string{"guildConfig.services"},
		template: map[string]any{
			"guildConfig": map[string]any{
				"guildId":  "",
				"rank":     "recruiter",
				"services": []any{},
				"joinRequirements": map[string]any{
					"minLevel": 1.0,
					"cost":     0.0,
				},
			},
		},
	}
}

func eventSpec() variantSpec {
	return variantSpec{
		label:       "Event agent",
		description: "Runs a time-limited or recurring event.",
		sections: []sectionSpec{{
			name:  "eventConfig",
			label: "Event",
			fields: []Field{
				field("eventConfig.eventId", KindString, "Event ID"),
				field("eventConfig.startDate", KindString, "Start date", help("YYYY-MM-DD")),
				field("eventConfig.endDate", KindString, "End date", help("YYYY-MM-DD")),
				field("eventConfig.recurring", KindBoolean, "Recurring", withDefault(false)),
				field("eventConfig.rewards", KindSequence, "Rewards"),
			},
		}},
		required:     []string{"eventConfig.eventId"},
		stepRequired: []string{"eventConfig.eventId", "eventConfig.startDate"},
		suggested:    []string{"eventConfig.endDate", "eventConfig.rewards"},
		template: map[string]any{
			"eventConfig": map[string]any{
				"eventId":   "",
				"startDate": "",
				"endDate":   "",
				"recurring": false,
				"rewards":   []any{},
			},
		},
	}
}

func questMasterSpec() variantSpec {
	return variantSpec{
		label:       "Quest master",
		description: "Hands out quests from one or more quest lines.",
		sections: []sectionSpec{{
			name:  "questConfig",
			label: "Quests",
			fields: []Field{
				field("questConfig.questIds", KindSequence, "Quest IDs"),
				field("questConfig.maxActive", KindNumber, "Max active quests", bounds(1, 10), withDefault(3.0)),
				field("questConfig.questLine", KindString, "Quest line"),
			},
		}},
		required:     []string{"questConfig.questIds"},
		stepRequired: []string{"questConfig.questIds"},
		suggested:    []string{"questConfig.questLine"},
		template: map[string]any{
			"questConfig": map[string]any{
				"questIds":  []any{},
				"maxActive": 3.0,
			},
		},
	}
}
