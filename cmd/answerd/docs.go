package main

// General API documentation. The served document lives in
// internal/httpapi/swagger.go (build with -tags swagger).
//
// @title           answerd API
// @version         1.0
// @description     Search-grounded answer generation with local and remote providers.
//
// @BasePath  /
//
// @schemes http
