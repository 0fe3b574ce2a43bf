// Package assets builds absolute URLs for course images, static references in course
// descriptions and course home pages.
package assets

import (
	"regexp"
	"strings"
)

// Resolver holds the base URLs asset links are built from.
type Resolver struct {
	LMSBaseURL      string
	LearningBaseURL string
}

// AssetURL joins the LMS base URL and an asset path with exactly one slash.
// Absolute URLs are returned unchanged and an empty path yields "".
func (r Resolver) AssetURL(assetPath string) string {
	if assetPath == "" {
		return ""
	}
	if strings.HasPrefix(assetPath, "http://") || strings.HasPrefix(assetPath, "https://") {
		return assetPath
	}
	return strings.TrimRight(r.LMSBaseURL, "/") + "/" + strings.TrimLeft(assetPath, "/")
}

var staticRef = regexp.MustCompile(`(?i)((?:src|href|data-src|poster)=)(?:"/static/([^"']+)"|'/static/([^"']+)')`)

// RewriteStaticReferences turns /static/... attribute values in html into absolute
// asset URLs. With a course key the asset-v1 form is used.
func (r Resolver) RewriteStaticReferences(html, courseKey string) string {
	if html == "" {
		return ""
	}
	base := strings.TrimRight(r.LMSBaseURL, "/")
	return staticRef.ReplaceAllStringFunc(html, func(match string) string {
		m := staticRef.FindStringSubmatch(match)
		attr, file, quote := m[1], m[2], `"`
		if file == "" {
			file, quote = m[3], `'`
		}
		var u string
		if courseKey != "" {
			assetKey := strings.Replace(courseKey, "course-v1:", "asset-v1:", 1)
			u = base + "/" + assetKey + "+type@asset+block@" + file
		} else {
			u = base + "/static/" + file
		}
		return attr + quote + u + quote
	})
}

// CourseHomeURL is the learning app home page of a course.
func (r Resolver) CourseHomeURL(courseKey string) string {
	base := strings.TrimSuffix(r.LearningBaseURL, "/")
	if !strings.HasSuffix(base, "/learning") {
		base += "/learning"
	}
	return base + "/course/" + courseKey + "/home"
}
