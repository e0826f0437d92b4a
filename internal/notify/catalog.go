package notify

import "candy-gallery/internal/domain"

// Notification keys. Each failure of the candy machine loader maps to exactly one key.
const (
	KeyNoCandyMachine      = "no-cm"
	KeyWrongAccountVersion = "wrong-account-version"
	KeyCandyMachineInvalid = "no-cm-found"
	KeyNoCandyGuard        = "no-guard-found"
)

var catalog = map[string]domain.Notification{
	KeyNoCandyMachine: {
		Key:         KeyNoCandyMachine,
		Title:       "No candy machine in .env!",
		Description: "Add your candy machine address to the .env file!",
	},
	KeyWrongAccountVersion: {
		Key:         KeyWrongAccountVersion,
		Title:       "Wrong candy machine account version!",
		Description: "Please use latest sugar to create your candy machine. Need Account Version 2!",
	},
	KeyCandyMachineInvalid: {
		Key:         KeyCandyMachineInvalid,
		Title:       "The CM from .env is invalid",
		Description: "Are you using the correct environment?",
	},
	KeyNoCandyGuard: {
		Key:         KeyNoCandyGuard,
		Title:       "No Candy Guard found!",
		Description: "Do you have one assigned?",
	},
}

// Lookup returns the catalog notification for key. All catalog entries are
// persistent errors.
func Lookup(key string) (domain.Notification, bool) {
	n, ok := catalog[key]
	if !ok {
		return domain.Notification{}, false
	}
	n.Severity = domain.SeverityError
	n.Persistent = true
	return n, true
}

// Keys returns all catalog keys.
func Keys() []string {
	return []string{KeyNoCandyMachine, KeyWrongAccountVersion, KeyCandyMachineInvalid, KeyNoCandyGuard}
}
