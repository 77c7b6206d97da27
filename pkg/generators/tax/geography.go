package tax

import "sort"

const (
	RegionNortheast = "Northeast"
	RegionSouth     = "South"
	RegionMidwest   = "Midwest"
	RegionWest      = "West"
)

// statesCities lists the cities offices can open in, per state. Alaska and
// Hawaii are not served.
var statesCities = map[string][]string{
	"AL": {"Birmingham", "Montgomery", "Mobile", "Huntsville"},
	"AZ": {"Phoenix", "Tucson", "Mesa", "Chandler"},
	"AR": {"Little Rock", "Fort Smith", "Fayetteville", "Springdale"},
	"CA": {"Los Angeles", "San Diego", "San Jose", "San Francisco", "Fresno", "Sacramento"},
	"CO": {"Denver", "Colorado Springs", "Aurora", "Fort Collins"},
	"CT": {"Bridgeport", "New Haven", "Hartford", "Stamford"},
	"DE": {"Wilmington", "Dover"},
	"FL": {"Jacksonville", "Miami", "Tampa", "Orlando", "St. Petersburg"},
	"GA": {"Atlanta", "Augusta", "Columbus", "Savannah"},
	"ID": {"Boise", "Nampa", "Meridian"},
	"IL": {"Chicago", "Aurora", "Naperville", "Joliet", "Rockford", "Springfield", "Bolingbrook"},
	"IN": {"Indianapolis", "Fort Wayne", "Evansville", "South Bend"},
	"IA": {"Des Moines", "Cedar Rapids", "Davenport", "Sioux City"},
	"KS": {"Wichita", "Overland Park", "Kansas City", "Topeka"},
	"KY": {"Louisville", "Lexington", "Bowling Green"},
	"LA": {"New Orleans", "Baton Rouge", "Shreveport", "Lafayette"},
	"ME": {"Portland", "Lewiston"},
	"MD": {"Baltimore", "Frederick", "Rockville"},
	"MA": {"Boston", "Worcester", "Springfield", "Cambridge"},
	"MI": {"Detroit", "Grand Rapids", "Warren", "Sterling Heights"},
	"MN": {"Minneapolis", "Saint Paul", "Rochester"},
	"MS": {"Jackson", "Gulfport", "Southaven"},
	"MO": {"Kansas City", "Saint Louis", "Springfield", "Columbia"},
	"MT": {"Billings", "Missoula", "Great Falls"},
	"NE": {"Omaha", "Lincoln", "Bellevue"},
	"NV": {"Las Vegas", "Henderson", "Reno"},
	"NH": {"Manchester", "Nashua", "Concord"},
	"NJ": {"Newark", "Jersey City", "Paterson", "Elizabeth"},
	"NM": {"Albuquerque", "Las Cruces", "Rio Rancho"},
	"NY": {"New York City", "Buffalo", "Rochester", "Yonkers", "Syracuse"},
	"NC": {"Charlotte", "Raleigh", "Greensboro", "Durham"},
	"ND": {"Fargo", "Bismarck", "Grand Forks"},
	"OH": {"Columbus", "Cleveland", "Cincinnati", "Toledo", "Akron"},
	"OK": {"Oklahoma City", "Tulsa", "Norman"},
	"OR": {"Portland", "Salem", "Eugene"},
	"PA": {"Philadelphia", "Pittsburgh", "Allentown", "Erie"},
	"RI": {"Providence", "Warwick", "Cranston"},
	"SC": {"Columbia", "Charleston", "North Charleston"},
	"SD": {"Sioux Falls", "Rapid City"},
	"TN": {"Nashville", "Memphis", "Knoxville", "Chattanooga"},
	"TX": {"Houston", "San Antonio", "Dallas", "Austin", "Fort Worth"},
	"UT": {"Salt Lake City", "West Valley City", "Provo"},
	"VT": {"Burlington", "South Burlington"},
	"VA": {"Virginia Beach", "Norfolk", "Chesapeake", "Richmond"},
	"WA": {"Seattle", "Spokane", "Tacoma", "Vancouver"},
	"WV": {"Charleston", "Huntington"},
	"WI": {"Milwaukee", "Madison", "Green Bay"},
	"WY": {"Cheyenne", "Casper"},
}

var regionStates = map[string][]string{
	RegionNortheast: {"CT", "ME", "MA", "NH", "NJ", "NY", "PA", "RI", "VT"},
	RegionSouth:     {"DE", "FL", "GA", "MD", "NC", "SC", "VA", "WV", "AL", "KY", "MS", "TN", "AR", "LA", "OK", "TX"},
	RegionMidwest:   {"IL", "IN", "IA", "KS", "MI", "MN", "MO", "NE", "ND", "OH", "SD", "WI"},
	RegionWest:      {"ID", "MT", "WY", "CO", "NM", "AZ", "UT", "NV", "CA", "OR", "WA"},
}

// RegionOf maps a served state to its census-style region.
func RegionOf(state string) string {
	for region, states := range regionStates {
		for _, s := range states {
			if s == state {
				return region
			}
		}
	}
	return RegionWest
}

// allStates returns the served states in a stable order.
func allStates() []string {
	states := make([]string, 0, len(statesCities))
	for s := range statesCities {
		states = append(states, s)
	}
	sort.Strings(states)
	return states
}

// RegionFocus presets restrict the state pool of both locations and
// customers.
var RegionFocus = map[string][]string{
	"All Regions":   allStates(),
	RegionNortheast: regionStates[RegionNortheast],
	RegionSouth:     regionStates[RegionSouth],
	RegionMidwest:   regionStates[RegionMidwest],
	RegionWest:      regionStates[RegionWest],
}

var regionFocusOptions = []string{"All Regions", RegionNortheast, RegionSouth, RegionMidwest, RegionWest}
