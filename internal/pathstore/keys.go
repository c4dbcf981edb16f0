package pathstore

import "strconv"

// SitesRoot is the prefix every published site lives under.
const SitesRoot = "docs/sites"

func SiteKey(siteID string) string { return SitesRoot + "/" + siteID }

// MetaKey holds the content hash of the last published revision.
func MetaKey(siteID string) string { return SiteKey(siteID) + "/meta" }

func SymbolsKey(siteID string) string { return SiteKey(siteID) + "/symbols" }

func SymbolKey(siteID, key string) string { return SymbolsKey(siteID) + "/" + key }

func NavRootKey(siteID string) string { return SiteKey(siteID) + "/nav" }

// NavKey addresses the n-th navigation node in pre-order.
func NavKey(siteID string, n int) string { return NavRootKey(siteID) + "/" + strconv.Itoa(n) }
