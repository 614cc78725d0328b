package services

// SpotifyAuthURLForTest exposes the authorize endpoint to external test packages.
const SpotifyAuthURLForTest = spotifyAuthURL
