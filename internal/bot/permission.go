package bot

import (
	"sync"

	"mangabot/internal/config"
	"mangabot/internal/logger"
)

// Gate decides which users and groups the bot answers. Lists are swapped
// atomically on config reload; all reads go through the RWMutex.
type Gate struct {
	mu           sync.RWMutex
	blacklist    map[string]bool
	privateAllow map[string]bool
	groupAllow   map[string]bool
	deleteUser   string // empty when delete is disabled
}

// NewGate builds a Gate from the permission lists in config
func NewGate(perm config.PermissionsConfig) *Gate {
	g := &Gate{}
	g.Update(perm)
	return g
}

// Update replaces all permission lists in one step. The delete permission
// is honored only when the list holds exactly one entry; any other count
// disables deletion entirely rather than guessing who was meant.
func (g *Gate) Update(perm config.PermissionsConfig) {
	blacklist := toSet(perm.Blacklist)
	privateAllow := toSet(perm.PrivateWhitelist)
	groupAllow := toSet(perm.GroupWhitelist)

	deleteUser := ""
	switch len(perm.DeleteUsers) {
	case 1:
		deleteUser = perm.DeleteUsers[0]
	case 0:
	default:
		logger.Warnf("Permission gate: delete_users has %d entries, delete disabled", len(perm.DeleteUsers))
	}

	g.mu.Lock()
	g.blacklist = blacklist
	g.privateAllow = privateAllow
	g.groupAllow = groupAllow
	g.deleteUser = deleteUser
	g.mu.Unlock()

	logger.Infof("Permission gate: %d blacklisted, %d private, %d groups, delete %s",
		len(blacklist), len(privateAllow), len(groupAllow), deleteState(deleteUser))
}

// Allow reports whether the bot should respond to this user in this
// context. The blacklist wins over every whitelist; an empty whitelist
// leaves its channel kind unrestricted. Every deny names the rule that
// fired.
func (g *Gate) Allow(userID, groupID string, private bool) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.blacklist[userID] {
		logger.Infof("Permission gate: denied user %s (blacklisted)", userID)
		return false
	}
	if private {
		if len(g.privateAllow) > 0 && !g.privateAllow[userID] {
			logger.Infof("Permission gate: denied user %s (not in private whitelist)", userID)
			return false
		}
		return true
	}
	if groupID != "" && len(g.groupAllow) > 0 && !g.groupAllow[groupID] {
		logger.Infof("Permission gate: denied group %s (not in group whitelist)", groupID)
		return false
	}
	return true
}

// CanDelete reports whether this user holds the delete permission
func (g *Gate) CanDelete(userID string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.deleteUser != "" && g.deleteUser == userID && !g.blacklist[userID]
}

// DeleteConfigured reports whether deletion is enabled at all
func (g *Gate) DeleteConfigured() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.deleteUser != ""
}

func toSet(list []string) map[string]bool {
	set := make(map[string]bool, len(list))
	for _, v := range list {
		if v == "" {
			continue
		}
		set[v] = true
	}
	return set
}

func deleteState(user string) string {
	if user == "" {
		return "disabled"
	}
	return "enabled"
}
