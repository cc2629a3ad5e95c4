// Package ytdlp implements the fetch stage. Remote sources are downloaded
// with yt-dlp; local files are hard-linked (or copied with verification when
// linking is impossible) into the work directory.
package ytdlp
