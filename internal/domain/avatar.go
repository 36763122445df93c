package domain

// Avatar is a closed set of player avatar identifiers.
type Avatar string

const (
	AvatarRocket    Avatar = "rocket"
	AvatarStar      Avatar = "star"
	AvatarFire      Avatar = "fire"
	AvatarLightning Avatar = "lightning"
	AvatarBrain     Avatar = "brain"
	AvatarCrown     Avatar = "crown"
	AvatarDiamond   Avatar = "diamond"
	AvatarHeart     Avatar = "heart"
	AvatarSmile     Avatar = "smile"
	AvatarCool      Avatar = "cool"
	AvatarHappy     Avatar = "happy"
	AvatarParty     Avatar = "party"
)

// DefaultGlyph is shown for anything outside the enumeration.
const DefaultGlyph = "🎮"

var avatarGlyphs = map[Avatar]string{
	AvatarRocket:    "🚀",
	AvatarStar:      "⭐",
	AvatarFire:      "🔥",
	AvatarLightning: "⚡",
	AvatarBrain:     "🧠",
	AvatarCrown:     "👑",
	AvatarDiamond:   "💎",
	AvatarHeart:     "❤️",
	AvatarSmile:     "😊",
	AvatarCool:      "😎",
	AvatarHappy:     "😄",
	AvatarParty:     "🎉",
}

// Glyph returns the display glyph for the avatar, or DefaultGlyph for
// anything unknown.
func (a Avatar) Glyph() string {
	if g, ok := avatarGlyphs[a]; ok {
		return g
	}
	return DefaultGlyph
}

// Normalize maps unknown avatar identifiers to the rocket default so stored
// records never carry open-ended strings.
func (a Avatar) Normalize() Avatar {
	if _, ok := avatarGlyphs[a]; ok {
		return a
	}
	return AvatarRocket
}
