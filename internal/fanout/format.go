package fanout

import (
	"strings"

	"modwatch/internal/detector"
	"modwatch/internal/transport"
)

const (
	maxTitleLength = 128
	trimmedMarker  = "<trimmed>"
)

// safeReplacer neutralizes characters the platform treats as rich-text
// markup. The zero-width joiner after "@" breaks mention parsing without
// leaving a visible artifact.
var safeReplacer = strings.NewReplacer(
	"_", `\_`,
	"*", `\*`,
	"~", `\~`,
	"@", "@‍",
)

func makeSafe(s string) string {
	return safeReplacer.Replace(s)
}

// truncateTitle caps a title at maxTitleLength runes, marker included.
func truncateTitle(s string) string {
	runes := []rune(s)
	if len(runes) <= maxTitleLength {
		return s
	}
	keep := maxTitleLength - len([]rune(trimmedMarker))
	return string(runes[:keep]) + trimmedMarker
}

// modLink builds the mod's portal page URL. Mod names may contain spaces,
// which must be percent-encoded for chat clients to linkify the whole URL.
func modLink(base, owner, name string) string {
	return strings.ReplaceAll(base+"/mods/"+owner+"/"+name, " ", "%20")
}

func buildMessage(ch detector.Change, thumbnail, linkBase string) transport.Message {
	label := "New mod"
	if ch.Kind == detector.KindUpdated {
		label = "Updated mod"
	}
	return transport.Message{
		KindLabel: label,
		Title:     truncateTitle(makeSafe(ch.Mod.Title)),
		Author:    makeSafe(ch.Mod.Owner),
		Version:   ch.Mod.Version,
		Link:      modLink(linkBase, ch.Mod.Owner, ch.Mod.Name),
		Thumbnail: thumbnail,
	}
}
