package nameid

// adjectives and nouns are the fixed word lists session names are drawn
// from. Kept small and pronounceable; collisions are handled
// by Generate's retry loop.
var adjectives = []string{
	"amber", "brave", "calm", "clever", "cosmic", "crimson", "curious",
	"daring", "eager", "earnest", "fleet", "gentle", "golden", "humble",
	"jolly", "keen", "lively", "lucid", "merry", "misty", "nimble",
	"noble", "placid", "quiet", "quick", "rapid", "sharp", "silent",
	"sleek", "solar", "steady", "sunny", "swift", "tidy", "vivid",
	"warm", "wise", "witty", "zesty", "zen",
}

var nouns = []string{
	"badger", "canyon", "cedar", "comet", "condor", "coral", "delta",
	"ember", "falcon", "fern", "glacier", "harbor", "heron", "jasper",
	"kestrel", "lagoon", "lantern", "lynx", "meadow", "mesa", "nimbus",
	"orbit", "otter", "pebble", "plateau", "quartz", "raven", "reef",
	"ridge", "river", "summit", "thicket", "tundra", "valley", "vernal",
	"willow", "wren", "yarrow", "zephyr", "zinnia",
}
