// Package themes holds the closed registry of story themes and the keyword
// detector that maps a user utterance to theme tags.
package themes

// Tag identifies a theme in the registry.
type Tag string

const (
	Adventure  Tag = "Adventure"
	Family     Tag = "Family"
	Friendship Tag = "Friendship"
	Magic      Tag = "Magic"
	SciFi      Tag = "SciFi"
	Comedy     Tag = "Comedy"
	Growth     Tag = "Growth"
)

// Theme is one registry entry.
type Theme struct {
	Tag           Tag
	StoryGuidance string
	QnAGuidance   string
	Keywords      []string
}

// registry is ordered; detection results follow this order.
var registry = []Theme{
	{
		Tag:           Adventure,
		StoryGuidance: "Build the story around a journey or quest with a clear goal, small obstacles, and a brave but safe resolution.",
		QnAGuidance:   "Frame the answer as a little expedition of discovery, inviting the child to imagine exploring alongside you.",
		Keywords: []string{
			"adventure", "journey", "quest", "explore", "treasure", "map", "pirate", "jungle",
			"mountain", "island", "dragon", "knight", "castle", "cave", "travel", "hero",
		},
	},
	{
		Tag:           Family,
		StoryGuidance: "Center the story on family warmth: parents, grandparents, siblings or pets who care for one another.",
		QnAGuidance:   "Relate the answer to everyday family life and moments the child may share with the people at home.",
		Keywords: []string{
			"family", "mom", "mum", "mother", "dad", "father", "grandma", "grandpa", "sister",
			"brother", "baby", "home", "parent", "aunt", "uncle", "cousin",
		},
	},
	{
		Tag:           Friendship,
		StoryGuidance: "Show friends helping each other, sharing, and making up after a small disagreement.",
		QnAGuidance:   "Connect the answer to playing, sharing and being kind to friends.",
		Keywords: []string{
			"friend", "together", "share", "sharing", "play", "buddy", "team", "help",
			"kind", "school", "classmate", "neighbor",
		},
	},
	{
		Tag:           Magic,
		StoryGuidance: "Add gentle magic: enchanted objects, talking animals or kind wizards, with wonder rather than fear.",
		QnAGuidance:   "Sprinkle a touch of wonder into the answer while keeping the facts accurate.",
		Keywords: []string{
			"magic", "wizard", "witch", "fairy", "spell", "unicorn", "wand", "enchant",
			"potion", "mermaid", "elf", "giant", "princess", "prince",
		},
	},
	{
		Tag:           SciFi,
		StoryGuidance: "Set the story among rockets, planets, robots or inventions, explaining any science simply and correctly.",
		QnAGuidance:   "Use simple, correct science and compare ideas to things the child already knows.",
		Keywords: []string{
			"space", "rocket", "robot", "planet", "star", "moon", "alien", "astronaut",
			"galaxy", "science", "invent", "machine", "future", "computer", "dinosaur",
		},
	},
	{
		Tag:           Comedy,
		StoryGuidance: "Keep the tone playful with silly situations, funny sounds and a cheerful twist.",
		QnAGuidance:   "Add a light, silly touch or a small joke to the answer.",
		Keywords: []string{
			"funny", "silly", "joke", "laugh", "giggle", "clown", "prank", "tickle", "goofy", "banana",
		},
	},
	{
		Tag:           Growth,
		StoryGuidance: "Let the main character learn something about courage, patience or honesty, shown through actions.",
		QnAGuidance:   "Encourage curiosity and effort, and praise the child for asking.",
		Keywords: []string{
			"learn", "grow", "brave", "afraid", "scared", "try", "practice", "mistake",
			"patience", "honest", "feel", "feeling", "first day", "sleep", "dark",
		},
	},
}

// All returns the registry in order. The returned slice must not be modified.
func All() []Theme { return registry }

// Lookup returns the theme with the given tag.
func Lookup(tag Tag) (Theme, bool) {
	for _, th := range registry {
		if th.Tag == tag {
			return th, true
		}
	}
	return Theme{}, false
}

// Tags returns every registered tag in registry order.
func Tags() []Tag {
	tags := make([]Tag, len(registry))
	for i, th := range registry {
		tags[i] = th.Tag
	}
	return tags
}
