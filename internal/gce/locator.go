package gce

import (
	"fmt"
	"regexp"
	"strings"
)

// instanceURLPattern matches a zone-scoped instance URL, either the full
// selfLink form or the trailing resource path.
var instanceURLPattern = regexp.MustCompile(`projects/([^/]+)/zones/([^/]+)/instances/([^/]+)$`)

// InstanceLocator identifies exactly one compute instance. Immutable once
// constructed.
type InstanceLocator struct {
	Project string
	Zone    string
	Name    string
}

// ParseInstanceURL derives an InstanceLocator from a zone-scoped resource
// URL as returned in operation targetLink / instance selfLink fields.
func ParseInstanceURL(raw string) (InstanceLocator, error) {
	m := instanceURLPattern.FindStringSubmatch(raw)
	if m == nil {
		return InstanceLocator{}, &ParseError{
			What: "instance URL",
			Err:  fmt.Errorf("%q does not match projects/*/zones/*/instances/*", raw),
		}
	}
	return InstanceLocator{Project: m[1], Zone: m[2], Name: m[3]}, nil
}

// Region maps the locator's zone to its enclosing region. A zone name
// encodes its region as a prefix ("us-central1-a" belongs to "us-central1");
// this is a naming contract of the provider, not something we re-derive.
func (l InstanceLocator) Region() (RegionLocator, error) {
	region, err := regionFromZone(l.Zone)
	if err != nil {
		return RegionLocator{}, err
	}
	return RegionLocator{Project: l.Project, Region: region}, nil
}

func (l InstanceLocator) String() string {
	return fmt.Sprintf("%s/%s/%s", l.Project, l.Zone, l.Name)
}

// RegionLocator identifies a region within a project.
type RegionLocator struct {
	Project string
	Region  string
}

// regionFromZone strips the zone suffix ("us-central1-a" -> "us-central1").
// Conforming zone names carry at least two dashes: one inside the region
// name and one before the zone letter.
func regionFromZone(zone string) (string, error) {
	if strings.Count(zone, "-") < 2 {
		return "", &ParseError{
			What: "zone name",
			Err:  fmt.Errorf("%q does not conform to <region>-<zone> naming", zone),
		}
	}
	return zone[:strings.LastIndex(zone, "-")], nil
}
