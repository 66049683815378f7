package portal

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type InfoSection struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Link    string `json:"link"`
}

type PrivacyPolicy struct {
	Title       string `json:"title"`
	Content     string `json:"content"`
	LastUpdated string `json:"lastUpdated"`
}

type HealthInfo struct {
	Title         string        `json:"title"`
	Sections      []InfoSection `json:"sections"`
	PrivacyPolicy PrivacyPolicy `json:"privacyPolicy"`
}

var publicHealthInfo = HealthInfo{
	Title: "Public Health Information",
	Sections: []InfoSection{
		{
			Title:   "COVID-19 Updates",
			Content: "Stay informed about the latest COVID-19 guidelines and vaccination information.",
			Link:    "#",
		},
		{
			Title:   "Seasonal Flu Prevention",
			Content: "Learn about steps you can take to prevent the seasonal flu and when to get vaccinated.",
			Link:    "#",
		},
		{
			Title:   "Mental Health Awareness",
			Content: "Explore resources and support options for maintaining good mental health.",
			Link:    "#",
		},
	},
	PrivacyPolicy: PrivacyPolicy{
		Title: "Privacy Policy",
		Content: "We are committed to protecting your health information in compliance with HIPAA regulations. " +
			"Your data is only accessible to you and your assigned healthcare provider.",
		LastUpdated: "2025-01-01",
	},
}

// RegisterPublicRoutes mounts the unauthenticated content routes. The
// paths must also be listed in auth's public path set.
func RegisterPublicRoutes(api *echo.Group) {
	api.GET("/public/health-info", GetHealthInfo)
}

func GetHealthInfo(c echo.Context) error {
	return c.JSON(http.StatusOK, publicHealthInfo)
}
