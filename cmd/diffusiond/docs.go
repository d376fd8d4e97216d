package main

// General API documentation for swaggo. The served document is embedded in
// internal/httpapi/openapi.json.
//
// @title           diffusiond API
// @version         1.0
// @description     HTTP API for local diffusion model catalog, image generation and progress.
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
