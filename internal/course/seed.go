package course

import "learnhub/internal/models"

// MockCourses is the catalog the dashboard ships with.
func MockCourses() []models.Course {
	return []models.Course{
		{
			Title:         "React Development Fundamentals",
			Description:   "Learn React from scratch with hands-on projects",
			Instructor:    "Sarah Johnson",
			DurationLabel: "12 hours",
			Students:      1250,
			Rating:        4.8,
			ThumbnailURL:  "https://images.unsplash.com/photo-1633356122544-f134324a6cee?w=400&h=200&fit=crop",
			Level:         "Beginner",
			VideoObject:   "courses/react-fundamentals/intro.mp4",
		},
		{
			Title:         "Advanced JavaScript Patterns",
			Description:   "Master advanced JavaScript concepts and design patterns",
			Instructor:    "Mike Chen",
			DurationLabel: "8 hours",
			Students:      890,
			Rating:        4.9,
			ThumbnailURL:  "https://images.unsplash.com/photo-1627398242454-45a1465c2479?w=400&h=200&fit=crop",
			Level:         "Advanced",
		},
		{
			Title:         "UI/UX Design Principles",
			Description:   "Create beautiful and user-friendly interfaces",
			Instructor:    "Emma Davis",
			DurationLabel: "10 hours",
			Students:      2100,
			Rating:        4.7,
			ThumbnailURL:  "https://images.unsplash.com/photo-1586717791821-3f44a563fa4c?w=400&h=200&fit=crop",
			Level:         "Intermediate",
		},
	}
}
