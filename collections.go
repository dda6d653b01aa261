package tia

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Date layouts the API accepts. Most collections take either a plain date or
// a full UTC timestamp.
var baseDateLayouts = []string{"2006-01-02", "2006-01-02T15:04:05Z"}

// collectionInfo describes one feed collection known to the client.
type collectionInfo struct {
	dateLayouts []string
	searchOnly  bool
}

// collectionsInfo is the registry of feed collections. Search-only
// collections cannot be traversed in ascending (update) mode.
var collectionsInfo = map[string]collectionInfo{
	"apt/threat":                {dateLayouts: baseDateLayouts},
	"apt/threat_actor":          {dateLayouts: baseDateLayouts},
	"attacks/ddos":              {dateLayouts: baseDateLayouts},
	"attacks/deface":            {dateLayouts: baseDateLayouts},
	"attacks/phishing":          {dateLayouts: baseDateLayouts},
	"attacks/phishing_group":    {dateLayouts: baseDateLayouts},
	"attacks/phishing_kit":      {dateLayouts: baseDateLayouts},
	"bp/phishing":               {dateLayouts: baseDateLayouts},
	"bp/phishing_kit":           {dateLayouts: baseDateLayouts},
	"compromised/access":        {dateLayouts: baseDateLayouts},
	"compromised/account":       {dateLayouts: baseDateLayouts},
	"compromised/account_group": {dateLayouts: baseDateLayouts},
	"compromised/bank_card":     {dateLayouts: baseDateLayouts},
	"compromised/breached":      {dateLayouts: baseDateLayouts, searchOnly: true},
	"compromised/imei":          {dateLayouts: baseDateLayouts},
	"compromised/masked_card":   {dateLayouts: baseDateLayouts},
	"compromised/messenger":     {dateLayouts: baseDateLayouts},
	"compromised/mule":          {dateLayouts: baseDateLayouts},
	"compromised/reaper":        {dateLayouts: baseDateLayouts, searchOnly: true},
	"hi/open_threats":           {dateLayouts: baseDateLayouts},
	"hi/threat":                 {dateLayouts: baseDateLayouts},
	"hi/threat_actor":           {dateLayouts: baseDateLayouts},
	"ioc/common":                {dateLayouts: baseDateLayouts},
	"malware/cnc":               {dateLayouts: baseDateLayouts},
	"malware/config":            {dateLayouts: baseDateLayouts},
	"malware/malware":           {dateLayouts: baseDateLayouts},
	"malware/signature":         {dateLayouts: baseDateLayouts},
	"malware/targeted_malware":  {dateLayouts: baseDateLayouts},
	"malware/yara":              {dateLayouts: baseDateLayouts},
	"osi/git_leak":              {dateLayouts: baseDateLayouts},
	"osi/git_repository":        {dateLayouts: baseDateLayouts},
	"osi/public_leak":           {dateLayouts: baseDateLayouts},
	"osi/vulnerability":         {dateLayouts: baseDateLayouts},
	"suspicious_ip/open_proxy":  {dateLayouts: baseDateLayouts},
	"suspicious_ip/scanner":     {dateLayouts: baseDateLayouts},
	"suspicious_ip/socks_proxy": {dateLayouts: baseDateLayouts},
	"suspicious_ip/tor_node":    {dateLayouts: baseDateLayouts},
	"suspicious_ip/vpn":         {dateLayouts: baseDateLayouts},
}

// Collections returns the sorted names of all feed collections this client
// knows how to traverse.
func Collections() []string {
	names := make([]string, 0, len(collectionsInfo))
	for name := range collectionsInfo {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// validateCollection checks that name is a known collection. When forUpdate
// is set it also rejects search-only collections.
func validateCollection(name string, forUpdate bool) error {
	info, ok := collectionsInfo[name]
	if !ok {
		return &InputError{
			Message: fmt.Sprintf("unknown collection %q, expected one of: %s", name, strings.Join(Collections(), ", ")),
		}
	}
	if forUpdate && info.searchOnly {
		return &InputError{
			Message: fmt.Sprintf("collection %q supports search sessions only", name),
		}
	}
	return nil
}

// validateDate checks a caller-supplied date string against the layouts the
// collection accepts. Empty dates are allowed; they mean "unbounded".
func validateDate(collection, date string) error {
	if date == "" {
		return nil
	}
	layouts := collectionsInfo[collection].dateLayouts
	for _, layout := range layouts {
		if _, err := time.Parse(layout, date); err == nil {
			return nil
		}
	}
	return &InputError{
		Message: fmt.Sprintf("invalid date %q, use one of these layouts: %s", date, strings.Join(layouts, ", ")),
	}
}
