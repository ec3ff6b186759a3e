package ai

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/i474232898/ecosync/internal/weather"
)

// buildPrompt grounds the model with the parameter catalog, the known city
// table and the current time before quoting the user's query.
func buildPrompt(query string, cities weather.CityCatalog, now time.Time) (string, error) {
	var table strings.Builder
	for _, name := range cities.Names() {
		city := cities[name]
		entry, err := json.Marshal(city.Coordinate())
		if err != nil {
			return "", fmt.Errorf("encode city %s: %w", name, err)
		}
		fmt.Fprintf(&table, "- %q (%s): %s\n", name, city.Country, entry)
	}

	var catalog strings.Builder
	for _, info := range weather.Catalog {
		fmt.Fprintf(&catalog, "- %s: %s (%s)\n", info.Code, info.Description, info.Unit)
	}

	return fmt.Sprintf(`You are a map assistant integrated in an air quality and atmospheric data app called EcoSync.

When the user asks for data about a specific city or region, you should:
1. Extract the city name from the query
2. Identify which atmospheric parameters they're interested in (temperature, humidity, precipitation, wind speed, pressure, aerosol optical depth, air quality)
3. Return a structured JSON response

Available parameters:
%s
City coordinates database:
%s

Current date and time: %s

User Query: %q

Return ONLY a JSON object with this structure:
{
  "city": "city name",
  "coordinates": {"lat": number, "lon": number},
  "parameters": ["T2M", "RH2M", ...],
  "summary": "brief human-readable response",
  "action": "visualize|compare|analyze",
  "layers": {"heatmap": boolean, "scatter": boolean, "text": boolean, "arc": boolean, "boundary": boolean}
}

The "layers" field is optional; include it only when the user asks for a particular map style.
If the city is not in the database, use your knowledge to provide approximate coordinates.`,
		catalog.String(),
		table.String(),
		now.UTC().Format("2006-01-02 15:04 MST"),
		query,
	), nil
}
