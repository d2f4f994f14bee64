package sqlite

import "github.com/review-agent/backend/internal/storage/models"

func ptr[T any](v T) *T { return &v }

// SampleReviews is a small demo data set: three positive, two negative and
// one neutral review. `reviewq seed` loads it into an empty store.
func SampleReviews() []models.Review {
	return []models.Review{
		{
			ID: 1, DatePublished: "2024-01-12", OverallRating: 9, PassengerCountry: "United Kingdom",
			TripVerified: "Trip Verified", CommentTitle: "Smooth and on time",
			Comment:         "Boarding was quick and the crew were friendly. Landed early.",
			Aircraft:        ptr("Boeing 737-800"), TypeOfTraveller: "Solo Leisure", SeatType: "Economy Class",
			Origin: "London Stansted", Destination: "Dublin", DateFlown: "January 2024",
			SeatComfort: ptr(4.0), CabinStaffService: ptr(5.0), GroundService: ptr(4.0), ValueForMoney: ptr(5.0),
			Recommended: "yes", Sentiment: "Positive", SentimentReason: "punctual flight and friendly crew",
		},
		{
			ID: 2, DatePublished: "2024-02-03", OverallRating: 8, PassengerCountry: "Ireland",
			TripVerified: "Trip Verified", CommentTitle: "Great value",
			Comment:         "Cheap fare and no surprises. Would fly again.",
			Aircraft:        ptr("Boeing 737-8200"), TypeOfTraveller: "Couple Leisure", SeatType: "Economy Class",
			Origin: "Dublin", Destination: "Barcelona", DateFlown: "February 2024",
			SeatComfort: ptr(3.0), CabinStaffService: ptr(4.0), GroundService: ptr(4.0), ValueForMoney: ptr(5.0),
			Recommended: "yes", Sentiment: "Positive", SentimentReason: "good value for money",
		},
		{
			ID: 3, DatePublished: "2024-02-20", OverallRating: 10, PassengerCountry: "United Kingdom",
			TripVerified: "Not Verified", CommentTitle: "Excellent crew",
			Comment:         "The cabin crew looked after our children the whole flight.",
			TypeOfTraveller: "Family Leisure", SeatType: "Economy Class",
			Origin: "Manchester", Destination: "Faro", DateFlown: "February 2024",
			SeatComfort: ptr(4.0), CabinStaffService: ptr(5.0), FoodBeverages: ptr(3.0), ValueForMoney: ptr(4.0),
			Recommended: "yes", Sentiment: "Positive", SentimentReason: "attentive cabin crew",
		},
		{
			ID: 4, DatePublished: "2024-03-08", OverallRating: 1, PassengerCountry: "United States",
			TripVerified: "Trip Verified", CommentTitle: "Never again",
			Comment:         "Charged for my bag at the gate and the flight was delayed three hours.",
			Aircraft:        ptr("Boeing 737-800"), TypeOfTraveller: "Business", SeatType: "Economy Class",
			Origin: "Rome", Destination: "London Stansted", DateFlown: "March 2024",
			SeatComfort: ptr(1.0), CabinStaffService: ptr(2.0), GroundService: ptr(1.0), ValueForMoney: ptr(1.0),
			Recommended: "no", Sentiment: "Negative", SentimentReason: "baggage fees and long delay",
		},
		{
			ID: 5, DatePublished: "2024-03-15", OverallRating: 2, PassengerCountry: "Germany",
			TripVerified: "Trip Verified", CommentTitle: "Rude ground staff",
			Comment:         "Staff at check-in were rude and the queue took an hour.",
			TypeOfTraveller: "Solo Leisure", SeatType: "Economy Class",
			Origin: "Berlin", Destination: "Dublin", DateFlown: "March 2024",
			SeatComfort: ptr(2.0), GroundService: ptr(1.0), ValueForMoney: ptr(2.0),
			Recommended: "no", Sentiment: "Negative", SentimentReason: "rude ground staff",
		},
		{
			ID: 6, DatePublished: "2024-04-01", OverallRating: 5, PassengerCountry: "Ireland",
			TripVerified: "Not Verified", CommentTitle: "It was fine",
			Comment:         "Nothing special, you get what you pay for.",
			Aircraft:        ptr("Boeing 737-800"), TypeOfTraveller: "Couple Leisure", SeatType: "Economy Class",
			Origin: "Dublin", Destination: "Paris Beauvais", DateFlown: "April 2024",
			SeatComfort: ptr(3.0), CabinStaffService: ptr(3.0), ValueForMoney: ptr(3.0),
			Recommended: "no", Sentiment: "Neutral", SentimentReason: "average experience",
		},
	}
}
