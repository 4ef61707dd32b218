package main

// General API documentation for swaggo. Run `make swagger-gen` to generate docs.
//
// @title           swapd status API
// @version         1.0
// @description     Status and metrics endpoint for the swapd supervisor.
//
// @BasePath  /
//
// @schemes http
