package timetools

import (
	"sort"
	"strings"
)

// zoneRegions are the top-level IANA areas, used by the timezone database
// resource.
var zoneRegions = []string{
	"Africa", "America", "Antarctica", "Arctic", "Asia",
	"Atlantic", "Australia", "Europe", "Indian", "Pacific",
}

// zoneNames is a curated snapshot of IANA zone identifiers. The Go runtime
// can resolve any zone from the embedded database but cannot enumerate it,
// so listing works off this table.
var zoneNames = []string{
	"Africa/Abidjan",
	"Africa/Accra",
	"Africa/Addis_Ababa",
	"Africa/Algiers",
	"Africa/Cairo",
	"Africa/Casablanca",
	"Africa/Johannesburg",
	"Africa/Khartoum",
	"Africa/Kinshasa",
	"Africa/Lagos",
	"Africa/Nairobi",
	"Africa/Tripoli",
	"Africa/Tunis",
	"America/Anchorage",
	"America/Argentina/Buenos_Aires",
	"America/Asuncion",
	"America/Bogota",
	"America/Caracas",
	"America/Chicago",
	"America/Costa_Rica",
	"America/Denver",
	"America/Detroit",
	"America/Edmonton",
	"America/Guatemala",
	"America/Halifax",
	"America/Havana",
	"America/Lima",
	"America/Los_Angeles",
	"America/Mexico_City",
	"America/Montevideo",
	"America/New_York",
	"America/Panama",
	"America/Phoenix",
	"America/Santiago",
	"America/Sao_Paulo",
	"America/St_Johns",
	"America/Tijuana",
	"America/Toronto",
	"America/Vancouver",
	"America/Winnipeg",
	"Antarctica/Casey",
	"Antarctica/McMurdo",
	"Antarctica/Palmer",
	"Arctic/Longyearbyen",
	"Asia/Almaty",
	"Asia/Amman",
	"Asia/Baghdad",
	"Asia/Baku",
	"Asia/Bangkok",
	"Asia/Beirut",
	"Asia/Colombo",
	"Asia/Dhaka",
	"Asia/Dubai",
	"Asia/Ho_Chi_Minh",
	"Asia/Hong_Kong",
	"Asia/Jakarta",
	"Asia/Jerusalem",
	"Asia/Kabul",
	"Asia/Karachi",
	"Asia/Kathmandu",
	"Asia/Kolkata",
	"Asia/Kuala_Lumpur",
	"Asia/Manila",
	"Asia/Riyadh",
	"Asia/Seoul",
	"Asia/Shanghai",
	"Asia/Singapore",
	"Asia/Taipei",
	"Asia/Tashkent",
	"Asia/Tehran",
	"Asia/Tokyo",
	"Asia/Yangon",
	"Atlantic/Azores",
	"Atlantic/Bermuda",
	"Atlantic/Canary",
	"Atlantic/Cape_Verde",
	"Atlantic/Reykjavik",
	"Australia/Adelaide",
	"Australia/Brisbane",
	"Australia/Darwin",
	"Australia/Hobart",
	"Australia/Melbourne",
	"Australia/Perth",
	"Australia/Sydney",
	"Europe/Amsterdam",
	"Europe/Athens",
	"Europe/Belgrade",
	"Europe/Berlin",
	"Europe/Brussels",
	"Europe/Bucharest",
	"Europe/Budapest",
	"Europe/Copenhagen",
	"Europe/Dublin",
	"Europe/Helsinki",
	"Europe/Istanbul",
	"Europe/Kyiv",
	"Europe/Lisbon",
	"Europe/London",
	"Europe/Madrid",
	"Europe/Moscow",
	"Europe/Oslo",
	"Europe/Paris",
	"Europe/Prague",
	"Europe/Rome",
	"Europe/Sofia",
	"Europe/Stockholm",
	"Europe/Vienna",
	"Europe/Warsaw",
	"Europe/Zurich",
	"Indian/Maldives",
	"Indian/Mauritius",
	"Indian/Reunion",
	"Pacific/Auckland",
	"Pacific/Chatham",
	"Pacific/Fiji",
	"Pacific/Guam",
	"Pacific/Honolulu",
	"Pacific/Noumea",
	"Pacific/Pago_Pago",
	"Pacific/Port_Moresby",
	"Pacific/Tahiti",
	"Pacific/Tongatapu",
	"UTC",
}

// ListZones returns the known zone identifiers, optionally filtered by a
// region prefix ("America", "Europe", ...). The result is sorted and safe to
// mutate.
func ListZones(region string) []string {
	zones := make([]string, 0, len(zoneNames))
	for _, name := range zoneNames {
		if region != "" && !strings.HasPrefix(name, region) {
			continue
		}
		zones = append(zones, name)
	}
	sort.Strings(zones)
	return zones
}
