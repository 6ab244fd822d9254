package parse

import "strings"

// quickActions are first words that signal a short task even without a
// stated duration. Common misspellings are listed alongside.
var quickActions = map[string]struct{}{
	"email": {}, "e-mail": {}, "emial": {}, "emai": {}, "emali": {}, "mail": {},
	"call": {}, "cal": {}, "phone": {}, "ring": {},
	"ping": {}, "slack": {}, "dm": {},
	"text": {}, "txt": {}, "sms": {}, "message": {}, "msg": {},
	"send": {}, "snd": {}, "forward": {}, "fwd": {},
	"reply": {}, "respond": {}, "answer": {},
	"file": {}, "submit": {}, "upload": {},
	"pay": {}, "renew": {}, "cancel": {},
	"check": {}, "chek": {}, "confirm": {}, "verify": {},
	"review": {}, "reveiw": {}, "reviw": {}, "approve": {}, "sign": {},
	"update": {}, "udpate": {}, "updte": {},
	"book": {}, "schedule": {}, "schedul": {}, "reschedule": {},
	"order": {}, "buy": {}, "print": {}, "scan": {}, "share": {}, "post": {}, "invite": {},
}

// IsQuickAction reports whether word belongs to the quick-action vocabulary.
func IsQuickAction(word string) bool {
	_, ok := quickActions[strings.ToLower(strings.TrimSpace(word))]
	return ok
}

func startsWithQuickAction(text string) bool {
	return IsQuickAction(firstWord(stripListMarkers(text)))
}
